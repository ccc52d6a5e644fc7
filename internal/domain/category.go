package domain

// Category is one selectable disagreement point.
type Category struct {
	Label string
	Type  string
}

// CategoryOther is the catch-all point that hands the dialogue to an operator.
const CategoryOther = "other"

// OtherReasonLabel is the label of the catch-all point.
const OtherReasonLabel = "Иная причина (связаться с оператором)"

// TutorDisagreeReason is stored for tutors, who have no category list.
const TutorDisagreeReason = "Данные выплаты"

var categories = []Category{
	{Label: "Число учеников", Type: "students"},
	{Label: "Проверки ДЗ", Type: "homework"},
	{Label: "Штрафы", Type: "fines"},
	{Label: "Стол заказов", Type: "meth"},
	{Label: "Вебинары", Type: "webs"},
	{Label: "Оплата за УП", Type: "up"},
	{Label: "Оплата за чаты", Type: "dops"},
	{Label: "КПИ за продления", Type: "rr"},
	{Label: OtherReasonLabel, Type: CategoryOther},
}

// Categories returns the disagreement points in display order. The catch-all
// point is always last.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryByLabel maps a button label back to its category.
func CategoryByLabel(label string) (Category, bool) {
	for _, c := range categories {
		if c.Label == label {
			return c, true
		}
	}
	return Category{}, false
}

// IsOther reports whether c is the operator hand-off point.
func (c Category) IsOther() bool { return c.Type == CategoryOther }
