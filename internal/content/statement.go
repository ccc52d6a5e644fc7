package content

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/utils"
)

// Renderer turns content rows into dialogue texts.
type Renderer struct {
	window time.Duration
	rules  config.RetentionRules
}

// NewRenderer returns a renderer that quotes window as the viewing period.
func NewRenderer(window time.Duration, rules config.RetentionRules) *Renderer {
	return &Renderer{window: window, rules: rules}
}

func (r *Renderer) notice() string {
	return fmt.Sprintf(viewingNotice, int(math.Round(r.window.Hours())))
}

// Statement renders the recipient-facing statement for a record. A nil row
// yields the fallback rendering built from whatever is known.
func (r *Renderer) Statement(batchFile string, kind domain.Kind, row domain.Row) string {
	if kind == domain.KindTutor {
		return r.tutorStatement(row)
	}
	if !row.Has("name", "total", "stud_all", "stud_gk", "stud_gkp") {
		return r.curatorFallback(row)
	}
	return r.curatorStatement(batchFile, row)
}

// Announcement is the statement prefixed with the new-statement line.
func (r *Renderer) Announcement(batchFile string, kind domain.Kind, row domain.Row) string {
	return AnnouncementPrefix + r.Statement(batchFile, kind, row)
}

// Warning renders the one-time expiry notice.
func (r *Renderer) Warning(batchFile string, archiveAt, now time.Time) string {
	hours := int(archiveAt.Sub(now).Hours())
	if hours < 0 {
		hours = 0
	}
	return fmt.Sprintf("Внимание! Ведомость '%s' будет заархивирована через %d часов. "+
		"Пожалуйста, подтвердите или оспорьте выплату до этого времени.", strings.TrimSuffix(batchFile, ".csv"), hours)
}

// IdentityPrompt asks the recipient to check the name and phone held by the
// payout console.
func IdentityPrompt(kind domain.Kind, row domain.Row) string {
	var phone, name string
	if kind == domain.KindTutor {
		phone = row.Get("Номер", "Телефон", "phone", "Phone", "telephone")
		name = row.Get("Репетитор", "ФИО", "fio", "name", "full_name", "FIO", "console", "Console")
	} else {
		phone = row.Get("Телефон", "phone", "Phone", "telephone")
		name = row.Get("console", "Console")
	}
	if phone == "" {
		phone = "-"
	}
	if name == "" {
		name = "-"
	}
	return "Проверь, пожалуйста, свои данные в приложении Консоль!\n\n" +
		"Номер телефона получателя: " + normalizePhone(phone) + "\n" +
		"ФИО получателя: " + name
}

var phoneFloat = regexp.MustCompile(`^(\d+)\.0+$`)

func normalizePhone(p string) string {
	if m := phoneFloat.FindStringSubmatch(p); m != nil {
		return m[1]
	}
	return p
}

func (r *Renderer) curatorStatement(batchFile string, row domain.Row) string {
	s := composeSections(row)
	var b strings.Builder
	b.WriteString(statementTitle)
	b.WriteString("\nВедомость: " + batchLabel(batchFile))
	b.WriteString("\nКуратор: " + row.Get("name"))
	b.WriteString("\nТип куратора: " + row.Get("type"))
	b.WriteString("\nПочта на платформе: " + row.Get("email"))
	if g := row.Get("groups"); meaningful(g) {
		b.WriteString("\nГруппы: " + g)
	}
	b.WriteString("\n")
	b.WriteString(s.studs)
	b.WriteString(s.retention)
	b.WriteString(s.okk)
	if s.checks != "" {
		b.WriteString("\n[Проверки]" + s.checks)
	}
	b.WriteString(s.extras)
	b.WriteString(s.fines)
	b.WriteString(s.total)
	b.WriteString("\n\n" + statementHint + "\n" + r.notice())
	return b.String()
}

func (r *Renderer) curatorFallback(row domain.Row) string {
	lines := []string{
		statementTitle,
		"Номер телефона, который указан в консоли: " + row.Get("Телефон", "phone", "Phone", "telephone"),
		"ФИО, которое указано в консоли: " + row.Get("console", "Console", "ФИО", "fio", "name", "full_name", "FIO"),
		"Тип куратора: " + row.Get("type"),
		"Куратор: " + row.Get("Куратор", "curator", "manager", "curator_name", "name"),
		"vk_id: " + row.Get("vk_id"),
		"Почта: " + row.Get("Почта", "mail", "email", "Email"),
	}
	if c := row.Get("comment"); meaningful(c) {
		lines = append(lines, "Комментарий: "+c)
	}
	lines = append(lines, "Группы: "+row.Get("Группы", "groups", "group", "groups_list"))
	if len(row) > 0 {
		s := composeSections(row)
		if s.checks != "" {
			s.checks = "\n[Проверки]" + s.checks
		}
		for _, block := range []string{s.studs, s.retention, s.okk, s.checks, s.extras, s.fines, s.total} {
			if block != "" {
				lines = append(lines, block)
			}
		}
	}
	lines = append(lines, "\n"+r.notice())
	return strings.Join(lines, "\n")
}

// cell mirrors a spreadsheet read where present-but-empty cells count as 0
// and absent columns as empty.
func cell(row domain.Row, keys ...string) string {
	present := false
	for _, k := range keys {
		if v, ok := row[k]; ok {
			present = true
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	if present {
		return "0"
	}
	return ""
}

func (r *Renderer) tutorStatement(row domain.Row) string {
	var b strings.Builder
	b.WriteString("Открыта ведомость\n\n")
	b.WriteString(statementTitle + "\n")
	fmt.Fprintf(&b, "ФИО: %s\n", cell(row, "Репетитор", "ФИО", "fio"))
	fmt.Fprintf(&b, "Предмет: %s\n", cell(row, "Предмет"))
	fmt.Fprintf(&b, "Кол-во проведенных занятий: %s\n", cell(row, "Кол-во состоявшихся занятий"))
	fmt.Fprintf(&b, "Уроки без подключения ученика: %s\n", cell(row, "Кол-во занятий, на которые не явился ученик"))
	fmt.Fprintf(&b, "Оплата за занятия: %s\n", cell(row, "Базовое вознаграждение за проведенные занятия"))
	fmt.Fprintf(&b, "Оценка контроля качества: %s\n", cell(row, "OKK", "ОКК"))
	fmt.Fprintf(&b, "Критерий удержания учеников: %s\n", cell(row, "RR"))
	fmt.Fprintf(&b, "Дополнительное вознаграждение за качество: %s\n", cell(row, "KPI"))
	prep := cell(row, "Подготовка к занятиям")
	if prep == "" {
		prep = "0"
	}
	fmt.Fprintf(&b, "Доп. вознаграждение за подготовку: %s\n", prep)
	fmt.Fprintf(&b, "Штрафы: %s\n", cell(row, "Штраф"))
	fmt.Fprintf(&b, "Итоговая сумма: %s\n\n", cell(row, "ИТОГ", "Итого", "Total", "total"))
	b.WriteString(statementHint + "\n" + r.notice())
	return b.String()
}

// Total returns the row's payable total and whether it is non-zero.
// Unparsable totals count as non-zero so that the record is still shown.
func Total(kind domain.Kind, row domain.Row) (string, bool) {
	var raw string
	if kind == domain.KindTutor {
		raw = row.Get("ИТОГ", "Итого", "Total", "total")
	} else {
		raw = row.Get("total", "Total", "TOTAL", "Итого")
	}
	if raw == "" {
		return "", false
	}
	f, ok := utils.ParseLooseFloat(raw)
	if !ok {
		return raw, true
	}
	return raw, math.Abs(f) >= 1e-9
}

var (
	zeroComment  = regexp.MustCompile(`^0+(\.0+)?$`)
	placeholders = map[string]struct{}{
		"0": {}, "0.0": {}, "0,0": {}, "nan": {}, "none": {}, "нет": {}, "no": {},
		"пусто": {}, "n/a": {}, "н/д": {}, "—": {}, "-": {}, "––": {},
	}
)

// meaningful reports whether a free-text cell carries more than a
// placeholder such as "0", "-" or "nan".
func meaningful(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	low := strings.ToLower(s)
	if _, ok := placeholders[low]; ok {
		return false
	}
	if zeroComment.MatchString(low) {
		return false
	}
	return strings.TrimSpace(strings.Trim(s, "-—")) != ""
}

func batchLabel(batchFile string) string {
	return strings.ReplaceAll(strings.TrimSuffix(batchFile, ".csv"), "_", " ")
}
