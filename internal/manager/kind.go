package manager

import (
	"slices"

	"maintenance-panel-backend/internal/model"
	"maintenance-panel-backend/internal/store"
)

// KeyStrategy decides how a new record gets its key.
type KeyStrategy int

const (
	// KeyGenerated assigns a random UUID on create.
	KeyGenerated KeyStrategy = iota
	// KeyBusinessCode uses the normalised code from the submitted record.
	// Writing an existing code overwrites that record.
	KeyBusinessCode
)

// Input is the HTML control a form field renders as.
type Input string

const (
	InputText     Input = "text"
	InputTextarea Input = "textarea"
	InputEmail    Input = "email"
	InputTel      Input = "tel"
	InputDate     Input = "date"
)

// Field is one editable form field. Dotted names address a leaf of an
// embedded sub-record.
type Field struct {
	Name     string
	Label    string
	Input    Input
	Required bool
	// Ref names the collection whose keys are offered as suggestions.
	Ref string
}

// Column is one column of a list table.
type Column struct {
	Field string
	Label string
}

// Kind describes one managed entity kind.
type Kind struct {
	Collection string
	Title      string
	Singular   string
	Key        KeyStrategy
	KeyField   string
	// LabelField is shown when other kinds reference a record of this kind.
	LabelField string
	Order      store.Order
	Filters    []string
	Fields     []Field
	Columns    []Column
}

// Filterable reports whether listings of this kind may be filtered by field.
func (k Kind) Filterable(field string) bool {
	return slices.Contains(k.Filters, field)
}

// Field returns the form field with the given name.
func (k Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ClientKind is the clients manager.
var ClientKind = Kind{
	Collection: model.CollectionClients,
	Title:      "Clients",
	Singular:   "client",
	Key:        KeyGenerated,
	KeyField:   "id",
	LabelField: "name",
	Order:      store.Order{Field: "name"},
	Fields: []Field{
		{Name: "name", Label: "Name", Input: InputText, Required: true},
		{Name: "company", Label: "Company", Input: InputText},
		{Name: "email", Label: "Email", Input: InputEmail},
		{Name: "phone", Label: "Phone", Input: InputTel},
		{Name: "address", Label: "Address", Input: InputText},
		{Name: "city", Label: "City", Input: InputText},
		{Name: "notes", Label: "Notes", Input: InputTextarea},
	},
	Columns: []Column{
		{Field: "name", Label: "Name"},
		{Field: "company", Label: "Company"},
		{Field: "email", Label: "Email"},
		{Field: "phone", Label: "Phone"},
		{Field: "city", Label: "City"},
	},
}

// MachineKind is the machines manager.
var MachineKind = Kind{
	Collection: model.CollectionMachines,
	Title:      "Machines",
	Singular:   "machine",
	Key:        KeyGenerated,
	KeyField:   "id",
	LabelField: "name",
	Order:      store.Order{Field: "name"},
	Filters:    []string{"client_id"},
	Fields: []Field{
		{Name: "client_id", Label: "Client", Input: InputText, Required: true, Ref: model.CollectionClients},
		{Name: "name", Label: "Name", Input: InputText, Required: true},
		{Name: "brand", Label: "Brand", Input: InputText},
		{Name: "model", Label: "Model", Input: InputText},
		{Name: "serial_number", Label: "Serial number", Input: InputText},
		{Name: "notes", Label: "Notes", Input: InputTextarea},
	},
	Columns: []Column{
		{Field: "name", Label: "Name"},
		{Field: "client_id", Label: "Client"},
		{Field: "brand", Label: "Brand"},
		{Field: "model", Label: "Model"},
		{Field: "serial_number", Label: "Serial"},
	},
}

// ReportKind is the maintenance reports manager. Newest reports come first.
var ReportKind = Kind{
	Collection: model.CollectionReports,
	Title:      "Reports",
	Singular:   "report",
	Key:        KeyGenerated,
	KeyField:   "id",
	LabelField: "date",
	Order:      store.Order{Field: "created_at", Desc: true},
	Filters:    []string{"client_id", "machine_id"},
	Fields: []Field{
		{Name: "client_id", Label: "Client", Input: InputText, Required: true, Ref: model.CollectionClients},
		{Name: "machine_id", Label: "Machine", Input: InputText, Ref: model.CollectionMachines},
		{Name: "date", Label: "Date", Input: InputDate, Required: true},
		{Name: "technician", Label: "Technician", Input: InputText},
		{Name: "work_type", Label: "Work type", Input: InputText},
		{Name: "description", Label: "Description", Input: InputTextarea},
		{Name: "observations", Label: "Observations", Input: InputTextarea},
		{Name: "equipment.paint_code", Label: "Paint", Input: InputText, Ref: model.CollectionPaints},
		{Name: "equipment.solvent_code", Label: "Solvent", Input: InputText, Ref: model.CollectionSolvents},
		{Name: "equipment.nozzle", Label: "Nozzle", Input: InputText},
		{Name: "equipment.pressure", Label: "Pressure", Input: InputText},
		{Name: "equipment.notes", Label: "Equipment notes", Input: InputTextarea},
		{Name: "signature", Label: "Signature (data URL)", Input: InputTextarea},
	},
	Columns: []Column{
		{Field: "date", Label: "Date"},
		{Field: "client_id", Label: "Client"},
		{Field: "machine_id", Label: "Machine"},
		{Field: "technician", Label: "Technician"},
		{Field: "work_type", Label: "Work type"},
	},
}

// PaintKind is the paint catalog.
var PaintKind = Kind{
	Collection: model.CollectionPaints,
	Title:      "Paints",
	Singular:   "paint",
	Key:        KeyBusinessCode,
	KeyField:   "code",
	LabelField: "name",
	Order:      store.Order{Field: "code"},
	Fields: []Field{
		{Name: "code", Label: "Code", Input: InputText, Required: true},
		{Name: "name", Label: "Name", Input: InputText, Required: true},
		{Name: "brand", Label: "Brand", Input: InputText},
		{Name: "color", Label: "Color", Input: InputText},
		{Name: "notes", Label: "Notes", Input: InputTextarea},
	},
	Columns: []Column{
		{Field: "code", Label: "Code"},
		{Field: "name", Label: "Name"},
		{Field: "brand", Label: "Brand"},
		{Field: "color", Label: "Color"},
	},
}

// SolventKind is the solvent catalog.
var SolventKind = Kind{
	Collection: model.CollectionSolvents,
	Title:      "Solvents",
	Singular:   "solvent",
	Key:        KeyBusinessCode,
	KeyField:   "code",
	LabelField: "name",
	Order:      store.Order{Field: "code"},
	Fields: []Field{
		{Name: "code", Label: "Code", Input: InputText, Required: true},
		{Name: "name", Label: "Name", Input: InputText, Required: true},
		{Name: "brand", Label: "Brand", Input: InputText},
		{Name: "notes", Label: "Notes", Input: InputTextarea},
	},
	Columns: []Column{
		{Field: "code", Label: "Code"},
		{Field: "name", Label: "Name"},
		{Field: "brand", Label: "Brand"},
	},
}
