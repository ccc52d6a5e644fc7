package content

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/utils"
)

// Explain returns the explanation for a disagreement category type. It never
// fails: missing or malformed data degrades to the category's generic text.
// Unknown types yield "".
func (r *Renderer) Explain(categoryType string, row domain.Row) string {
	switch categoryType {
	case "students":
		return explainStudents
	case "homework":
		return explainHomework + homeworkNumbers(row)
	case "fines":
		return explainFines
	case "meth":
		return explainMeth
	case "webs":
		return explainWebs
	case "up":
		return explainUP
	case "dops":
		return explainDops
	case "rr":
		if text, ok := r.RetentionFormula(row); ok {
			return text
		}
		return explainRetentionGeneric
	}
	return ""
}

func homeworkNumbers(row domain.Row) string {
	_, hasAll := row["checks_all"]
	_, hasPrev := row["checks_prev"]
	if !hasAll || !hasPrev {
		return explainHomeworkNoData
	}
	all := utils.LooseInt(row.Get("checks_all"))
	prev := utils.LooseInt(row.Get("checks_prev"))
	pay := utils.LooseInt(row.Get("checks_salary"))
	return fmt.Sprintf(explainHomeworkNumbers, all, prev, all, prev, pay)
}

// percentValue parses a retention figure; fractions below 1 are scaled to
// percent.
func percentValue(s string) (float64, bool) {
	f, ok := utils.ParseLooseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if !ok {
		return 0, false
	}
	if f < 1 {
		f *= 100
	}
	return f, true
}

func pct(f float64) string { return utils.FormatNumber(utils.Round2(f)) + "%" }

func num(f float64) string { return utils.FormatNumber(utils.Round2(f)) }

// RetentionFormula explains the retention-rate payout of a curator row. It
// reports false when no course line could be computed.
//
// Group curators: (FP-MIN)/(MAX-MIN) * weight * students * rate_per_student.
// Personal curators: (FP-MIN)/(MAX-MIN) * personal_coefficient * weight *
// students * base. FP above MAX is clamped to MAX; FP at or below MIN pays
// the row's rr_salary as-is.
func (r *Renderer) RetentionFormula(row domain.Row) (string, bool) {
	rules := r.rules
	courseType := row.Get("class")
	curatorType := row.Get("type")
	personal := curatorType == rules.PersonalTypeName
	base := utils.LooseInt(row.Get("base"))

	lines := []struct {
		name     string
		plus     bool
		suffix   string
		students int64
	}{
		{"ГК", false, "gk", utils.LooseInt(row.Get("stud_gk"))},
		{"ГК+", true, "gkp", utils.LooseInt(row.Get("stud_gkp"))},
	}

	var b strings.Builder
	b.WriteString("Твой RR считается по формуле из договора, а именно:")
	parts, formulas := 0, 0
	for _, ln := range lines {
		show := ln.students > 0
		switch courseType {
		case "ГК/ГК+":
		case "ГК":
			show = show && !ln.plus
		case "ГК+":
			show = show && ln.plus
		default:
			show = false
		}
		rrRaw := row.Get("rr_" + ln.suffix)
		if !show || rrRaw == "" || base == 0 {
			continue
		}

		th := rules.Thresholds(curatorType, ln.plus)
		lo, hi := th.Min, th.Max
		if v, ok := utils.ParseLooseFloat(strings.TrimSuffix(row.Get("rr_min_"+ln.suffix), "%")); ok {
			lo = v
		}
		if v, ok := utils.ParseLooseFloat(strings.TrimSuffix(row.Get("rr_max_"+ln.suffix), "%")); ok {
			hi = v
		}
		if lo < 1 {
			lo *= 100
		}
		if hi < 1 {
			hi *= 100
		}
		fp, ok := percentValue(rrRaw)
		if !ok {
			continue
		}
		paid := utils.LooseFloat(row.Get("rr_salary_" + ln.suffix))

		if fp <= lo {
			fmt.Fprintf(&b, "\n\nДля %s: Твой RR, взятый из ЖО: %s меньше или равен минимальному значению по договору: %s, "+
				"поэтому оплата за RR составляет: %.2f₽", ln.name, pct(fp), pct(lo), paid)
			parts++
			continue
		}
		clamped := fp > hi
		if clamped {
			fp = hi
		}
		calc := 0.0
		n := float64(ln.students)
		if hi != lo {
			ratio := (fp - lo) / (hi - lo)
			if personal {
				calc = ratio * rules.PersonalCoeff * rules.Weight * n * float64(base)
			} else {
				calc = ratio * rules.Weight * n * rules.RatePerStudent
			}
		}
		if personal {
			fmt.Fprintf(&b, "\n\nДля %s: Оплата за RR = (ФП-МИН) / (МАКС-МИН)*%s * %s * КОЛ-ВО_ДЕТЕЙ * СТАВКА_ЗА_УЧЕНИКА "+
				"=(%s - %s)/(%s - %s)*%s*%s*%d*%d = %.2f₽",
				ln.name, num(rules.PersonalCoeff), num(rules.Weight),
				num(fp), num(lo), num(hi), num(lo), num(rules.PersonalCoeff), num(rules.Weight), ln.students, base, calc)
		} else {
			fmt.Fprintf(&b, "\n\nДля %s: Оплата за RR = (ФП-МИН) / (МАКС-МИН)* %s * КОЛ-ВО_ДЕТЕЙ * %s "+
				"=(%s - %s)/(%s - %s)*%s*%d*%s = %.2f₽",
				ln.name, num(rules.Weight), num(rules.RatePerStudent),
				num(fp), num(lo), num(hi), num(lo), num(rules.Weight), ln.students, num(rules.RatePerStudent), calc)
		}
		if clamped {
			b.WriteString("\n*в данном случае ФП=МАКС, так как твой показатель ФП превысил максимальный процент (подробнее см. в договоре)")
		}
		parts++
		formulas++
	}
	if parts == 0 {
		return "", false
	}
	if formulas > 0 {
		b.WriteString("\n\nФП - фактическое значение RR, взятое из ЖО за ПРОШЛЫЙ блок.")
		b.WriteString("\nМАКС, МИН - Макс. и мин. проценты из договора.")
		if personal {
			fmt.Fprintf(&b, "\n%s - Добавочный коэффициент.", num(rules.PersonalCoeff))
		}
		fmt.Fprintf(&b, "\n%s - Вес метрики.", num(rules.Weight))
		b.WriteString("\nКОЛ-ВО_ДЕТЕЙ - Количество детей в твоей группе.")
		if personal {
			b.WriteString("\nСТАВКА_ЗА_УЧЕНИКА - фиксированная оплата за одного обучающегося.")
		} else {
			fmt.Fprintf(&b, "\n%s - Фиксированная оплата за одного обучающегося.", num(rules.RatePerStudent))
		}
	}
	return b.String(), true
}

const maxLabelRunes = 40

// ListLabel names a record on a list button: the batch name plus a group
// hint, or the creation date when the row names no groups. Labels are cut to
// 40 runes.
func ListLabel(batchFile, groups string, idx int, createdAt time.Time) string {
	if strings.TrimSpace(batchFile) == "" {
		return fmt.Sprintf("Ведомость %d", idx)
	}
	name := strings.TrimSuffix(batchFile, ".csv")
	g := strings.TrimSpace(groups)
	switch {
	case g != "" && strings.Contains(g, "|"):
		parts := strings.Split(g, "|")
		part := strings.TrimSpace(parts[len(parts)-1])
		if strings.HasPrefix(strings.ToLower(part), "группа ") {
			part = strings.TrimSpace(string([]rune(part)[len([]rune("группа ")):]))
		}
		if part != "" {
			name = fmt.Sprintf("%s (%s)", name, part)
		}
	case g != "":
		if r := []rune(g); len(r) > 10 {
			g = string(r[len(r)-10:])
		}
		name = fmt.Sprintf("%s (%s)", name, g)
	case !createdAt.IsZero():
		name = fmt.Sprintf("%s (%s)", name, createdAt.Format("02.01"))
	}
	if utf8.RuneCountInString(name) > maxLabelRunes {
		name = string([]rune(name)[:maxLabelRunes-3]) + "..."
	}
	return name
}
