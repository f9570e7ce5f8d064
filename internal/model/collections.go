package model

// Collection names shared by the store, the rule set and the routes.
const (
	CollectionClients  = "clients"
	CollectionMachines = "machines"
	CollectionReports  = "reports"
	CollectionPaints   = "paints"
	CollectionSolvents = "solvents"
)

// Managed returns every model the panel manages, for migrations.
func Managed() []any {
	return []any{&Client{}, &Machine{}, &Report{}, &Paint{}, &Solvent{}}
}
