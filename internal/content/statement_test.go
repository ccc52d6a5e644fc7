package content

import (
	"strings"
	"testing"
	"time"

	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

func newRenderer() *Renderer {
	return NewRenderer(36*time.Hour, config.DefaultRules().Retention)
}

func mustContain(t *testing.T, text string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(text, p) {
			t.Fatalf("missing %q in:\n%s", p, text)
		}
	}
}

func TestCuratorStatement_SplitCourses(t *testing.T) {
	row := domain.Row{
		"name": "Иван Иванов", "type": "Сотник", "email": "ivan@example.com", "groups": "Аня | Группа 1",
		"stud_gk": "10", "stud_gkp": "4", "base": "150", "stud_salary_gk": "1500", "stud_salary_gkp": "600",
		"rr_gk": "0.85", "rr_salary_gk": "120,5", "okk_gk": "90%", "okk_salary_gk": "80",
		"checks_salary": "700", "up": "100", "webs": "50",
		"fines": "200", "total": "3 500", "comment": "премия за март",
	}
	text := newRenderer().Statement("Математика_Блок_1.csv", domain.KindCurator, row)
	mustContain(t, text,
		"=== Согласование выплаты ===",
		"Ведомость: Математика Блок 1",
		"Куратор: Иван Иванов",
		"Группы: Аня | Группа 1",
		"[Сопровождение ГК]",
		"Всего учеников - ГК: 10",
		"Retention ГК: 85%",
		"→ Оплата за retention ГК: 120.5₽",
		"OKK ГК: 90%",
		"→ Сумма KPI (OKK+Retention): 200.5₽",
		"[Сопровождение ГК+]",
		"→ Сумма оклада: 600₽",
		"[Проверки]\n→ Проверка домашних работ: 700₽",
		"[Иная деятельность]\nЗа учебную поддержку: 100₽\nМодерация вебинаров: 50₽\n→ Всего в категории: 150₽",
		"Штрафы: -200₽",
		"ИТОГО К ВЫПЛАТЕ: 3500₽",
		"[!!!] Комментарий: премия за март",
		"Просмотр ведомости возможен в течение 36 часов",
	)
	if strings.Contains(text, "[Retention]") {
		t.Fatalf("combined retention block must not appear with split courses")
	}
}

func TestCuratorStatement_CombinedBlocksAndPlaceholders(t *testing.T) {
	row := domain.Row{
		"name": "Мария", "stud_all": "25", "stud_rep": "3", "stud_salary": "2500",
		"rr_salary_gk": "50", "kpi_total": "130", "okk_salary_gkp": "80",
		"total": "2630", "comment": "—", "fines": "0",
	}
	text := newRenderer().Statement("B.csv", domain.KindCurator, row)
	mustContain(t, text,
		"[Сопровождение учеников]\nВсего учеников в группах: 25\nКол-во учеников с тарифом с репетитором: 3",
		"[Retention]\nОплата за retention ГК: 50₽",
		"[Показатели ОКК]\nОплата за OKK ГК+: 80₽\n→ Сумма KPI (OKK+Retention): 130₽",
		"Штрафы: отсутствуют",
	)
	if strings.Contains(text, "Комментарий") || strings.Contains(text, "Группы:") {
		t.Fatalf("placeholders must be hidden:\n%s", text)
	}
}

func TestCuratorFallback_WithoutRow(t *testing.T) {
	text := newRenderer().Statement("B.csv", domain.KindCurator, nil)
	mustContain(t, text, "=== Согласование выплаты ===", "vk_id: ", "\n\nПросмотр ведомости возможен в течение 36 часов")
	if strings.Contains(text, "ИТОГО") {
		t.Fatalf("fallback without row must not render sections")
	}
}

func TestTutorStatement(t *testing.T) {
	row := domain.Row{
		"Репетитор": "Анна", "Предмет": "Физика", "Кол-во состоявшихся занятий": "12",
		"Кол-во занятий, на которые не явился ученик": "", "ОКК": "95", "ИТОГ": "12000",
	}
	text := newRenderer().Statement("T.csv", domain.KindTutor, row)
	mustContain(t, text,
		"Открыта ведомость\n\n=== Согласование выплаты ===\nФИО: Анна\nПредмет: Физика\n",
		"Уроки без подключения ученика: 0\n",
		"Оценка контроля качества: 95\n",
		"Критерий удержания учеников: \n",
		"Доп. вознаграждение за подготовку: 0\n",
		"Итоговая сумма: 12000\n\nНажмите «Согласен»",
	)
	if !strings.HasPrefix(newRenderer().Announcement("T.csv", domain.KindTutor, row), AnnouncementPrefix) {
		t.Fatalf("announcement prefix missing")
	}
}

func TestIdentityPrompt(t *testing.T) {
	got := IdentityPrompt(domain.KindCurator, domain.Row{"Телефон": "79517249750.0", "console": "Иванов И.И."})
	mustContain(t, got, "Номер телефона получателя: 79517249750\n", "ФИО получателя: Иванов И.И.")

	got = IdentityPrompt(domain.KindTutor, domain.Row{"Номер": "79000000000", "Репетитор": "Анна"})
	mustContain(t, got, "79000000000", "ФИО получателя: Анна")

	got = IdentityPrompt(domain.KindCurator, nil)
	mustContain(t, got, "Номер телефона получателя: -", "ФИО получателя: -")
}

func TestTotal(t *testing.T) {
	cases := []struct {
		kind    domain.Kind
		row     domain.Row
		nonZero bool
	}{
		{domain.KindCurator, domain.Row{"total": "1 500,00"}, true},
		{domain.KindCurator, domain.Row{"total": "0,0"}, false},
		{domain.KindCurator, domain.Row{"total": ""}, false},
		{domain.KindCurator, domain.Row{}, false},
		{domain.KindCurator, domain.Row{"total": "см. комментарий"}, true},
		{domain.KindTutor, domain.Row{"ИТОГ": "3000"}, true},
	}
	for i, c := range cases {
		if _, got := Total(c.kind, c.row); got != c.nonZero {
			t.Fatalf("case %d: nonZero=%v want %v", i, got, c.nonZero)
		}
	}
}

func TestMeaningful(t *testing.T) {
	for _, s := range []string{"", " ", "0", "0.00", "nan", "НЕТ", "n/a", "—", "-", "--", "––"} {
		if meaningful(s) {
			t.Fatalf("meaningful(%q) = true", s)
		}
	}
	for _, s := range []string{"премия", "0.5 ставки", "+1000"} {
		if !meaningful(s) {
			t.Fatalf("meaningful(%q) = false", s)
		}
	}
}

func TestWarning(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := newRenderer().Warning("B1.csv", now.Add(8*time.Hour+10*time.Minute), now)
	mustContain(t, got, "Ведомость 'B1' будет заархивирована через 8 часов")
}

func TestListLabel(t *testing.T) {
	created := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		batch, groups string
		want          string
	}{
		{"Физика.csv", "Аня Колотович | Группа 1", "Физика (1)"},
		{"Физика.csv", "Аня | Вечерняя", "Физика (Вечерняя)"},
		{"Физика.csv", "ОченьДлинноеНазваниеГруппы", "Физика (аниеГруппы)"},
		{"Физика.csv", "", "Физика (07.03)"},
		{"", "", "Ведомость 3"},
	}
	for _, c := range cases {
		got := ListLabel(c.batch, c.groups, 3, created)
		if got != c.want {
			t.Fatalf("ListLabel(%q,%q) = %q; want %q", c.batch, c.groups, got, c.want)
		}
	}
	long := ListLabel(strings.Repeat("я", 60)+".csv", "", 1, time.Time{})
	if n := len([]rune(long)); n != 40 || !strings.HasSuffix(long, "...") {
		t.Fatalf("long label = %q (%d runes)", long, n)
	}
}
