package domain

import "strings"

// Row is one recipient's spreadsheet row keyed by column header.
type Row map[string]string

// Get returns the first non-blank value among keys, trimmed.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether any of keys holds a non-blank value.
func (r Row) Has(keys ...string) bool { return r.Get(keys...) != "" }

// Kind infers the statement template from the row's columns.
func (r Row) Kind() Kind {
	if _, ok := r["Репетитор"]; ok {
		return KindTutor
	}
	if _, ok := r["Номер"]; ok {
		return KindTutor
	}
	return KindCurator
}
