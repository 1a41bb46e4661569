package featurecode

// Dictionary assigns codes lazily, in first-seen order. It is not safe for
// concurrent use.
type Dictionary struct {
	codes      map[string]Code
	categories []string
}

// NewDictionary returns an empty lazy dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{codes: make(map[string]Code)}
}

// Code returns the code for raw, minting one if the value is new.
func (d *Dictionary) Code(raw Raw) Code {
	value, ok := Normalize(raw)
	if !ok {
		return Absent
	}
	if code, ok := d.codes[value]; ok {
		return code
	}
	code := Code(len(d.categories))
	d.codes[value] = code
	d.categories = append(d.categories, value)
	return code
}

// Lookup returns the code for raw without minting a new one.
func (d *Dictionary) Lookup(raw Raw) (Code, bool) {
	value, ok := Normalize(raw)
	if !ok {
		return Absent, false
	}
	code, ok := d.codes[value]
	return code, ok
}

// Decode returns the normalized value behind code.
func (d *Dictionary) Decode(code Code) (string, bool) {
	if !code.Valid() || int(code) >= len(d.categories) {
		return "", false
	}
	return d.categories[code], true
}

// Len is the number of distinct values seen so far.
func (d *Dictionary) Len() int {
	return len(d.categories)
}
