package reconcile

import (
	"fmt"
	"time"

	"github.com/septivank/water-metering-sync/internal/db"
	"github.com/septivank/water-metering-sync/internal/validator"
	"github.com/septivank/water-metering-sync/tools/timeparser"
)

// MapClient converts a DONNEES CLIENT row into a clients record
func MapClient(row validator.Row) db.Client {
	return db.Client{
		PDS:                           row.RawCell(ColPDS),
		ContratNumFct:                 validator.ParseIntStrict(row.Cell("contrat_num_fct")),
		PDSSiteTypeFct:                row.Cell("pds_site_type_fct"),
		PDSAIPrincipalFlagFct:         validator.ParseBool(row.Cell("pds_ai_principal_flag_fct")),
		PDSSiteAdresseFct:             row.Cell("pds_site_adresse_fct"),
		PDSSiteAdresseCpltFct:         row.Cell("pds_site_adresse_cplt_fct"),
		PDSSiteCPFct:                  validator.ParseIntStrict(row.Cell("pds_site_cp_fct")),
		PDSSiteVilleFct:               row.Cell("pds_site_ville_fct"),
		ContractantNomFct:             row.Cell("contractant_nom_fct"),
		ContractantAdresseFct:         row.Cell("contractant_adresse_fct"),
		ContractantCPFct:              validator.ParseIntStrict(row.Cell("contractant_cp_fct")),
		ContractantVilleFct:           row.Cell("contractant_ville_fct"),
		ContractantPaysFct:            row.Cell("contractant_pays_fct"),
		DestinataireNomFct:            row.Cell("destinataire_nom_fct"),
		ContratESOFlagCRM:             validator.ParseBool(row.Cell("contrat_eso_flag_crm")),
		CompteurDiametrePatrimoine:    validator.ParseIntStrict(row.Cell("compteur_diametre_patrimoine")),
		CompteurAccesPatrimoine:       row.Cell("compteur_acces_patrimoine"),
		CompteurEmplacementPatrimoine: row.Cell("compteur_emplacement_patrimoine"),
	}
}

// MapIndex converts an INDEX row into an indexs record. Timestamps are read in
// loc; the day column must be a DD/MM/YYYY date.
func MapIndex(row validator.Row, loc *time.Location) (db.IndexReading, error) {
	dateIndex, err := timeparser.ParseSheetDateTime(row.Cell("date_index"), loc)
	if err != nil {
		return db.IndexReading{}, fmt.Errorf("invalid date_index: %w", err)
	}
	lastModified, err := timeparser.ParseSheetDateTime(row.Cell(ColLastModified), loc)
	if err != nil {
		return db.IndexReading{}, fmt.Errorf("invalid last_modified: %w", err)
	}
	day, err := timeparser.ParseSheetDate(row.Cell("day"))
	if err != nil {
		return db.IndexReading{}, fmt.Errorf("invalid day: %w", err)
	}

	return db.IndexReading{
		PDS:               row.RawCell(ColPDS),
		DateIndex:         dateIndex,
		Index:             validator.ParseFloatLocale(row.Cell("index")),
		Source:            row.Cell("source"),
		Quality:           validator.ParseIntStrict(row.Cell("quality")),
		Rank:              validator.ParseIntStrict(row.Cell(ColRank)),
		LastModified:      lastModified,
		Day:               day,
		DailyDifferential: validator.ParseFloatLocale(row.Cell("daily_differential")),
	}, nil
}

// MapQmin converts a QMIN row into a qmins record
func MapQmin(row validator.Row, loc *time.Location) (db.QminReading, error) {
	referenceDate, err := timeparser.ParseSheetDateTime(row.Cell("reference_date"), loc)
	if err != nil {
		return db.QminReading{}, fmt.Errorf("invalid reference_date: %w", err)
	}
	lastModified, err := timeparser.ParseSheetDateTime(row.Cell(ColLastModified), loc)
	if err != nil {
		return db.QminReading{}, fmt.Errorf("invalid last_modified: %w", err)
	}

	return db.QminReading{
		PDS:           row.RawCell(ColPDS),
		ReferenceDate: referenceDate,
		Qmin:          validator.ParseIntStrict(row.Cell("qmin")),
		LastModified:  lastModified,
		Rank:          validator.ParseIntStrict(row.Cell(ColRank)),
	}, nil
}
