package pdf

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// formField mirrors one entry of pdfcpu's form JSON.
type formField struct {
	Pages     []int  `json:"pages,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	AltName   string `json:"altname,omitempty"`
	Default   any    `json:"default,omitempty"`
	Value     any    `json:"value"`
	Options   []any  `json:"options,omitempty"`
	Multiline bool   `json:"multiline,omitempty"`
	Locked    bool   `json:"locked,omitempty"`
}

type formBlock struct {
	TextField        []formField `json:"textfield,omitempty"`
	DateField        []formField `json:"datefield,omitempty"`
	CheckBox         []formField `json:"checkbox,omitempty"`
	RadioButtonGroup []formField `json:"radiobuttongroup,omitempty"`
	ComboBox         []formField `json:"combobox,omitempty"`
	ListBox          []formField `json:"listbox,omitempty"`
}

type formDocument struct {
	Header json.RawMessage `json:"header,omitempty"`
	Forms  []formBlock     `json:"forms"`
}

// FillForm sets the named AcroForm fields on the template. Values
// whose field does not exist in the template are logged and skipped;
// the form is left interactive.
func (p *Processor) FillForm(template []byte, values map[string]string) ([]byte, error) {
	var exported bytes.Buffer
	if err := api.ExportFormJSON(bytes.NewReader(template), &exported, "template.pdf", conf()); err != nil {
		log.Printf("[PDF] template carries no fillable form: %v", err)
		return template, nil
	}
	var doc formDocument
	if err := json.Unmarshal(exported.Bytes(), &doc); err != nil {
		return nil, &Error{Op: "form export parse", Cause: err}
	}

	filled := make(map[string]bool, len(values))
	for i := range doc.Forms {
		applyFormValues(&doc.Forms[i], values, filled)
	}
	for name := range values {
		if !filled[name] {
			log.Printf("[PDF] form field not found in template: %s", name)
		}
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, &Error{Op: "form fill encode", Cause: err}
	}
	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(template), bytes.NewReader(payload), &out, conf()); err != nil {
		return nil, &Error{Op: "form fill", Cause: err}
	}
	return out.Bytes(), nil
}

func applyFormValues(block *formBlock, values map[string]string, filled map[string]bool) {
	setText := func(fields []formField) {
		for i := range fields {
			if v, ok := values[fields[i].Name]; ok {
				fields[i].Value = v
				filled[fields[i].Name] = true
			}
		}
	}
	setText(block.TextField)
	setText(block.DateField)
	setText(block.RadioButtonGroup)
	setText(block.ComboBox)
	setText(block.ListBox)
	for i := range block.CheckBox {
		if v, ok := values[block.CheckBox[i].Name]; ok {
			block.CheckBox[i].Value = checkboxState(v)
			filled[block.CheckBox[i].Name] = true
		}
	}
}

func checkboxState(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "on", "1":
		return true
	}
	return false
}
