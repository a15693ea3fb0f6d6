package tfnsync

import "encoding/json"

// Remote payload shapes for the six TFN read endpoints. Numeric fields come
// through as json.Number because the partner is inconsistent about quoting.

type tfnDepot struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Address    string      `json:"address"`
	City       string      `json:"city"`
	Province   string      `json:"province"`
	PostalCode string      `json:"postalCode"`
	Latitude   json.Number `json:"latitude"`
	Longitude  json.Number `json:"longitude"`
	Phone      string      `json:"phone"`
	Email      string      `json:"email"`
	Active     *bool       `json:"active"`
}

type tfnVehicle struct {
	Registration string      `json:"registration"`
	FleetNumber  string      `json:"fleetNumber"`
	Status       string      `json:"status"`
	TankSize     json.Number `json:"tankSize"`
	CreditLimit  json.Number `json:"creditLimit"`
	Balance      json.Number `json:"balance"`
	SubAccountNo string      `json:"subAccountNo"`
}

type tfnDriver struct {
	FullName  string `json:"fullName"`
	LicenseNo string `json:"licenseNo"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Active    *bool  `json:"active"`
}

type tfnOrder struct {
	ID             string          `json:"id"`
	Registration   string          `json:"registration"`
	ProductCode    string          `json:"productCode"`
	ValidDateStart string          `json:"validDateStart"`
	ValidDateEnd   string          `json:"validDateEnd"`
	Allocation     json.Number     `json:"allocation"`
	Status         string          `json:"status"`
	Deleted        bool            `json:"isDeleted"`
	Entries        []tfnOrderEntry `json:"entries"`
}

type tfnOrderEntry struct {
	Registration   string      `json:"registration"`
	ProductCode    string      `json:"productCode"`
	ValidDateStart string      `json:"validDateStart"`
	ValidDateEnd   string      `json:"validDateEnd"`
	Allocation     json.Number `json:"allocation"`
	Deleted        bool        `json:"isDeleted"`
}

type tfnTransaction struct {
	ID              string      `json:"id"`
	Registration    string      `json:"registration"`
	DriverLicenseNo string      `json:"driverLicenseNo"`
	DriverPhone     string      `json:"driverPhone"`
	DepotCode       string      `json:"depotCode"`
	ProductCode     string      `json:"productCode"`
	TransactionTime string      `json:"transactionTime"`
	Odometer        json.Number `json:"odometer"`
	Volume          json.Number `json:"volume"`
	UnitPrice       json.Number `json:"unitPrice"`
	Amount          json.Number `json:"amount"`
}

type tfnBalance struct {
	SubAccountNo    string      `json:"subAccountNo"`
	Balance         json.Number `json:"balance"`
	CreditLimit     json.Number `json:"creditLimit"`
	AvailableCredit json.Number `json:"availableCredit"`
	AsOfDate        string      `json:"asOfDate"`
}

// EntityResult is the outcome of one entity type's reconciliation pass.
// A non-empty Error means the pass terminated early; the counts then cover
// the records processed before the failure.
type EntityResult struct {
	Synced  int    `json:"synced"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Error   string `json:"error,omitempty"`
}

func (r EntityResult) Failed() bool { return r.Error != "" }

// SyncReport is the aggregate result of a full sync run, one sub-result per
// entity type in dependency order. Success is false only when something
// escaped the per-type error handling.
type SyncReport struct {
	Depots       EntityResult `json:"depots"`
	Vehicles     EntityResult `json:"vehicles"`
	Drivers      EntityResult `json:"drivers"`
	Orders       EntityResult `json:"orders"`
	Transactions EntityResult `json:"transactions"`
	Balances     EntityResult `json:"accountBalances"`
	Success      bool         `json:"success"`
	Message      string       `json:"message,omitempty"`
}

func (r *SyncReport) results() map[string]EntityResult {
	return map[string]EntityResult{
		"depots":          r.Depots,
		"vehicles":        r.Vehicles,
		"drivers":         r.Drivers,
		"orders":          r.Orders,
		"transactions":    r.Transactions,
		"accountBalances": r.Balances,
	}
}

func (r *SyncReport) TotalSynced() int {
	total := 0
	for _, res := range r.results() {
		total += res.Synced
	}
	return total
}

func (r *SyncReport) ErrorCount() int {
	count := 0
	for _, res := range r.results() {
		if res.Failed() {
			count++
		}
	}
	return count
}

func EncodeReport(report *SyncReport) []byte {
	b, _ := json.Marshal(report)
	return b
}

func DecodeReport(raw []byte) *SyncReport {
	if len(raw) == 0 {
		return nil
	}
	var report SyncReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	return &report
}

type TriggerSyncRequest struct {
	OrdersSince       string `json:"ordersSince"`
	TransactionsSince string `json:"transactionsSince"`
}

type SyncRunResponse struct {
	ID            uint        `json:"id"`
	Status        string      `json:"status"`
	StartedAt     *string     `json:"startedAt"`
	FinishedAt    *string     `json:"finishedAt"`
	DurationMs    int64       `json:"durationMs"`
	RecordsSynced int         `json:"recordsSynced"`
	ErrorCount    int         `json:"errorCount"`
	TriggeredBy   string      `json:"triggeredBy"`
	Report        *SyncReport `json:"report,omitempty"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
}
