package reconcile

import "github.com/septivank/water-metering-sync/internal/validator"

// Column names shared by the reading schemas
const (
	ColPDS          = "pds"
	ColLastModified = "last_modified"
	ColRank         = "rank"
)

// ClientsSchema is the layout of the DONNEES CLIENT tab (A:R)
var ClientsSchema = validator.Schema{
	Name:    "DONNEES CLIENT",
	Version: 1,
	Columns: []string{
		ColPDS,
		"contrat_num_fct",
		"pds_site_type_fct",
		"pds_ai_principal_flag_fct",
		"pds_site_adresse_fct",
		"pds_site_adresse_cplt_fct",
		"pds_site_cp_fct",
		"pds_site_ville_fct",
		"contractant_nom_fct",
		"contractant_adresse_fct",
		"contractant_cp_fct",
		"contractant_ville_fct",
		"contractant_pays_fct",
		"destinataire_nom_fct",
		"contrat_eso_flag_crm",
		"compteur_diametre_patrimoine",
		"compteur_acces_patrimoine",
		"compteur_emplacement_patrimoine",
	},
	Required: 1,
}

// IndexSchema is the layout of the INDEX tab (A:K). Columns I and J are not
// imported.
var IndexSchema = validator.Schema{
	Name:    "INDEX",
	Version: 1,
	Columns: []string{
		ColPDS,
		"date_index",
		"index",
		"source",
		"quality",
		ColLastModified,
		ColRank,
		"day",
		"unused_i",
		"unused_j",
		"daily_differential",
	},
	Required: 8,
}

// QminSchema is the layout of the QMIN tab (A:E)
var QminSchema = validator.Schema{
	Name:    "QMIN",
	Version: 1,
	Columns: []string{
		ColPDS,
		"reference_date",
		"qmin",
		ColLastModified,
		ColRank,
	},
	Required: 4,
}
