package content

import (
	"strings"
	"testing"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

func TestExplain_StaticAndUnknown(t *testing.T) {
	r := newRenderer()
	for _, typ := range []string{"students", "fines", "meth", "webs", "up", "dops"} {
		if r.Explain(typ, nil) == "" {
			t.Fatalf("Explain(%q) empty", typ)
		}
	}
	if got := r.Explain("nope", nil); got != "" {
		t.Fatalf("unknown type must yield empty, got %q", got)
	}
}

func TestExplain_HomeworkNumbers(t *testing.T) {
	r := newRenderer()
	got := r.Explain("homework", domain.Row{"checks_all": "1200", "checks_prev": "900", "checks_salary": "300"})
	mustContain(t, got, "Оплата за ДЗ", "за всё время на аккаунте: 1200", "в эту выплату пойдёт: 1200 - 900 = 300")

	got = r.Explain("homework", domain.Row{"checks_all": "1200"})
	mustContain(t, got, "сверка по CSV будет выполнена оператором")
}

func TestRetentionFormula_Group(t *testing.T) {
	row := domain.Row{"class": "ГК", "type": "Сотник", "stud_gk": "10", "base": "100", "rr_gk": "0.8"}
	got, ok := newRenderer().RetentionFormula(row)
	if !ok {
		t.Fatalf("expected a formula")
	}
	// (80-70)/(90-70) * 0.7 * 10 * 30
	mustContain(t, got,
		"Для ГК: Оплата за RR",
		"=(80 - 70)/(90 - 70)*0.7*10*30 = 105.00₽",
		"0.7 - Вес метрики.",
		"30 - Фиксированная оплата за одного обучающегося.",
	)
	if strings.Contains(got, "ГК+") || strings.Contains(got, "Добавочный коэффициент") {
		t.Fatalf("unexpected lines:\n%s", got)
	}
}

func TestRetentionFormula_PersonalAndRowOverrides(t *testing.T) {
	row := domain.Row{
		"class": "ГК/ГК+", "type": "Личный", "base": "200",
		"stud_gk": "4", "rr_gk": "90%",
		"stud_gkp": "2", "rr_gkp": "0.99", "rr_min_gkp": "0.5", "rr_max_gkp": "0.9",
	}
	got, ok := newRenderer().RetentionFormula(row)
	if !ok {
		t.Fatalf("expected a formula")
	}
	// ГК personal thresholds 80..95: (90-80)/(95-80)*0.3*0.7*4*200 = 112
	mustContain(t, got, "Для ГК:", "=(90 - 80)/(95 - 80)*0.3*0.7*4*200 = 112.00₽")
	// ГК+ row overrides 50..90, FP 99 clamps to 90: 1*0.3*0.7*2*200 = 84
	mustContain(t, got, "Для ГК+:", "=(90 - 50)/(90 - 50)*0.3*0.7*2*200 = 84.00₽", "ФП=МАКС")
	mustContain(t, got, "0.3 - Добавочный коэффициент.", "СТАВКА_ЗА_УЧЕНИКА - фиксированная оплата")
}

func TestRetentionFormula_BelowMinimum(t *testing.T) {
	row := domain.Row{"class": "ГК", "type": "Сотник", "stud_gk": "10", "base": "100", "rr_gk": "65%", "rr_salary_gk": "0"}
	got, ok := newRenderer().RetentionFormula(row)
	if !ok {
		t.Fatalf("expected a message")
	}
	mustContain(t, got, "65% меньше или равен минимальному значению по договору: 70%", "0.00₽")
	if strings.Contains(got, "Вес метрики") {
		t.Fatalf("legend must be omitted without formulas")
	}
}

func TestExplain_RetentionFallsBackToGeneric(t *testing.T) {
	r := newRenderer()
	cases := []domain.Row{
		nil,
		{"class": "ГК", "stud_gk": "10", "rr_gk": "0.8"},                    // no base
		{"class": "ГК+", "stud_gk": "10", "base": "100", "rr_gk": "0.8"},    // course mismatch
		{"class": "ГК", "stud_gk": "10", "base": "100", "rr_gk": "n/a"},     // unparsable FP
		{"class": "Другое", "stud_gk": "10", "base": "100", "rr_gk": "0.8"}, // unknown class
	}
	for i, row := range cases {
		if got := r.Explain("rr", row); got != explainRetentionGeneric {
			t.Fatalf("case %d: expected generic text, got %q", i, got)
		}
	}
}
