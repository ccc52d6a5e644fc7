package content

import (
	"fmt"
	"strings"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/utils"
)

type sections struct {
	studs, retention, okk, checks, extras, fines, total string
}

var extras = []struct{ key, name string }{
	{"up", "За учебную поддержку"},
	{"chats", "Модерация чатов"},
	{"webs", "Модерация вебинаров"},
	{"meth", "Стол заказов"},
	{"dop_sk", "Доп. суммы, начисленные СК"},
	{"callsg", "Групповые созвоны"},
	{"callsp", "Индивидуальные созвоны"},
}

// course is one accompaniment line (ГК or ГК+) of a curator row.
type course struct {
	title      string
	students   int64
	salaryRaw  string
	salary     int64
	rr, okk    string
	rrPay      string
	okkPay     string
	rrPayNum   float64
	okkPayNum  float64
	hasPayment bool
}

func readCourse(row domain.Row, suffix, title string) course {
	c := course{
		title:     title,
		students:  utils.LooseInt(row.Get("stud_" + suffix)),
		salaryRaw: row.Get("stud_salary_" + suffix),
		rr:        utils.Percent(row.Get("rr_" + suffix)),
		okk:       utils.Percent(row.Get("okk_" + suffix)),
		rrPay:     utils.Money(row.Get("rr_salary_" + suffix)),
		okkPay:    utils.Money(row.Get("okk_salary_" + suffix)),
	}
	c.salary = utils.LooseInt(c.salaryRaw)
	c.rrPayNum = utils.LooseFloat(c.rrPay)
	c.okkPayNum = utils.LooseFloat(c.okkPay)
	c.hasPayment = c.rrPay != "0" || c.okkPay != "0"
	return c
}

func composeSections(row domain.Row) sections {
	var s sections

	base := utils.LooseInt(row.Get("base"))
	studAll := utils.LooseInt(row.Get("stud_all"))
	studRep := utils.LooseInt(row.Get("stud_rep"))
	studSalary := utils.LooseInt(row.Get("stud_salary"))
	repSalary := utils.Money(row.Get("rep_salary"))
	hasRepSalary := utils.LooseFloat(repSalary) > 0
	kpiTotal := utils.Money(row.Get("kpi_total"))
	hasKPITotal := utils.LooseFloat(kpiTotal) > 0

	gk := readCourse(row, "gk", "ГК")
	gkp := readCourse(row, "gkp", "ГК+")

	var blocks strings.Builder
	for i, c := range []course{gk, gkp} {
		if c.students <= 0 {
			continue
		}
		var lines strings.Builder
		fmt.Fprintf(&lines, "\nВсего учеников - %s: %d", c.title, c.students)
		if base > 0 {
			fmt.Fprintf(&lines, "\nОклад за ученика: %d₽", base)
		}
		switch {
		case c.salary > 0 || c.salaryRaw != "":
			fmt.Fprintf(&lines, "\n→ Сумма оклада: %d₽", c.salary)
		case i == 0 && studSalary > 0:
			fmt.Fprintf(&lines, "\n→ Сумма оклада: %d₽", studSalary)
			if studRep > 0 {
				fmt.Fprintf(&lines, "\nКол-во учеников с тарифом с репетитором: %d", studRep)
			}
		}
		if i == 0 && hasRepSalary {
			fmt.Fprintf(&lines, "\nДоплата за учеников с репетитором: %s₽", repSalary)
		}
		if c.rr != "" {
			fmt.Fprintf(&lines, "\nRetention %s: %s", c.title, c.rr)
		}
		if c.rrPay != "0" {
			fmt.Fprintf(&lines, "\n→ Оплата за retention %s: %s₽", c.title, c.rrPay)
		}
		if c.okk != "" {
			fmt.Fprintf(&lines, "\nOKK %s: %s", c.title, c.okk)
		}
		if c.okkPay != "0" {
			fmt.Fprintf(&lines, "\n→ Оплата за OKK %s: %s₽", c.title, c.okkPay)
		}
		if c.hasPayment {
			fmt.Fprintf(&lines, "\n→ Сумма KPI (OKK+Retention): %s₽", utils.FormatNumber(utils.Round2(c.rrPayNum+c.okkPayNum)))
		}
		fmt.Fprintf(&blocks, "\n[Сопровождение %s]\n%s\n", c.title, lines.String())
	}

	split := blocks.Len() > 0
	switch {
	case split:
		s.studs = blocks.String()
	case studAll > 0 || studRep > 0 || studSalary > 0 || hasRepSalary:
		var b strings.Builder
		b.WriteString("\n[Сопровождение учеников]")
		if studAll > 0 {
			fmt.Fprintf(&b, "\nВсего учеников в группах: %d", studAll)
		}
		if studRep > 0 {
			fmt.Fprintf(&b, "\nКол-во учеников с тарифом с репетитором: %d", studRep)
		}
		if base > 0 {
			fmt.Fprintf(&b, "\nОклад за ученика: %d₽", base)
		}
		if hasRepSalary {
			fmt.Fprintf(&b, "\nДоплата за учеников с репетитором: %s₽", repSalary)
		}
		if studSalary > 0 {
			fmt.Fprintf(&b, "\n→ Сумма оклада: %d₽", studSalary)
		}
		if hasKPITotal {
			fmt.Fprintf(&b, "\n→ Сумма KPI (OKK+Retention): %s₽", kpiTotal)
		}
		s.studs = b.String()
	}

	if !split {
		if gk.rrPayNum > 0 || gkp.rrPayNum > 0 {
			var b strings.Builder
			b.WriteString("\n[Retention]")
			for _, c := range []course{gk, gkp} {
				if c.rr != "" {
					fmt.Fprintf(&b, "\nRetention %s: %s", c.title, c.rr)
				}
				if c.rrPay != "0" {
					fmt.Fprintf(&b, "\nОплата за retention %s: %s₽", c.title, c.rrPay)
				}
			}
			s.retention = b.String()
		}
		if gk.okkPayNum > 0 || gkp.okkPayNum > 0 || hasKPITotal {
			var b strings.Builder
			b.WriteString("\n[Показатели ОКК]")
			for _, c := range []course{gk, gkp} {
				if c.okk != "" {
					fmt.Fprintf(&b, "\nOKK %s: %s", c.title, c.okk)
				}
				if c.okkPay != "0" {
					fmt.Fprintf(&b, "\nОплата за OKK %s: %s₽", c.title, c.okkPay)
				}
			}
			if hasKPITotal {
				fmt.Fprintf(&b, "\n→ Сумма KPI (OKK+Retention): %s₽", kpiTotal)
			}
			s.okk = b.String()
		}
	}

	checks := utils.LooseInt(row.Get("checks_salary"))
	dopChecks := utils.LooseInt(row.Get("dop_checks"))
	if checks > 0 || dopChecks > 0 {
		var b strings.Builder
		if checks > 0 {
			fmt.Fprintf(&b, "\n→ Проверка домашних работ: %d₽", checks)
		}
		if dopChecks > 0 {
			fmt.Fprintf(&b, "\n→ Дополнительно – за проверки (данные СК): %d₽", dopChecks)
		}
		b.WriteString("\n")
		s.checks = b.String()
	}

	var extrasTotal int64
	for _, e := range extras {
		extrasTotal += utils.LooseInt(row.Get(e.key))
	}
	if extrasTotal > 0 {
		var b strings.Builder
		b.WriteString("\n\n[Иная деятельность]")
		for _, e := range extras {
			if v := utils.LooseInt(row.Get(e.key)); v > 0 {
				fmt.Fprintf(&b, "\n%s: %d₽", e.name, v)
			}
		}
		fmt.Fprintf(&b, "\n→ Всего в категории: %d₽", extrasTotal)
		s.extras = b.String()
	}

	if fines := utils.LooseInt(row.Get("fines")); fines > 0 {
		s.fines = fmt.Sprintf("\n\nШтрафы: -%d₽", fines)
	} else {
		s.fines = "\n\nШтрафы: отсутствуют"
	}

	s.total = fmt.Sprintf("\n\nИТОГО К ВЫПЛАТЕ: %s₽", utils.Money(row.Get("total")))
	if c := row.Get("comment"); meaningful(c) {
		s.total += "\n[!!!] Комментарий: " + c
	}
	return s
}
