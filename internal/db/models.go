package db

import (
	"time"
)

// Client represents a metering connection (pds) in the clients table
type Client struct {
	PDS                           string
	ContratNumFct                 *int64
	PDSSiteTypeFct                string
	PDSAIPrincipalFlagFct         bool
	PDSSiteAdresseFct             string
	PDSSiteAdresseCpltFct         string
	PDSSiteCPFct                  *int64
	PDSSiteVilleFct               string
	ContractantNomFct             string
	ContractantAdresseFct         string
	ContractantCPFct              *int64
	ContractantVilleFct           string
	ContractantPaysFct            string
	DestinataireNomFct            string
	ContratESOFlagCRM             bool
	CompteurDiametrePatrimoine    *int64
	CompteurAccesPatrimoine       string
	CompteurEmplacementPatrimoine string
}

// IndexReading represents a cumulative meter reading in the indexs table
type IndexReading struct {
	PDS               string
	DateIndex         time.Time
	Index             *float64
	Source            string
	Quality           *int64
	Rank              *int64
	LastModified      time.Time
	Day               string
	DailyDifferential *float64
}

// QminReading represents a minimum-flow reading in the qmins table
type QminReading struct {
	PDS           string
	ReferenceDate time.Time
	Qmin          *int64
	LastModified  time.Time
	Rank          *int64
}

// ConsumptionSnapshot is a row of the consumption_snapshots view. The
// differential columns hold the reference reading 1 and 7 days before the
// latest one.
type ConsumptionSnapshot struct {
	PDS                     string
	LastIndex               *float64
	IndexDailyDifferential  *float64
	IndexWeeklyDifferential *float64
	LastQmin                *float64
	QminDailyDifferential   *float64
	QminWeeklyDifferential  *float64
}
