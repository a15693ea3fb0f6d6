package tfnsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultOrderLookbackDays = 13
const defaultTransactionLookbackDays = 7

// Syncer runs the six entity-type reconciliations against one partner API
// and one store. A run is strictly sequential: later entity types link to
// rows the earlier passes wrote.
type Syncer struct {
	api    partnerAPI
	store  Store
	logger *logrus.Logger
	now    func() time.Time
}

func NewSyncer(api partnerAPI, store Store, logger *logrus.Logger) *Syncer {
	return &Syncer{
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// RunOptions narrows the fetch windows for the two date-bounded endpoints.
// Nil fields fall back to the defaults (orders 13 days, transactions 7).
type RunOptions struct {
	OrdersSince       *time.Time
	TransactionsSince *time.Time
}

// RunFullSync executes depots, vehicles, drivers, orders, transactions and
// account balances in that order and always returns a fully populated
// report: a failed entity type carries its error message, the others their
// counts. Only a panic escaping a reconciler flips Success off, and even
// then the partial report built so far is returned.
func (s *Syncer) RunFullSync(ctx context.Context, opts RunOptions) (report *SyncReport) {
	report = &SyncReport{Success: true}
	defer func() {
		if r := recover(); r != nil {
			report.Success = false
			report.Message = fmt.Sprintf("unexpected sync failure: %v", r)
			s.logger.WithFields(logrus.Fields{
				"module": "tfnsync",
			}).Errorf("sync run panicked: %v", r)
		}
	}()

	ordersSince := s.now().AddDate(0, 0, -defaultOrderLookbackDays)
	if opts.OrdersSince != nil {
		ordersSince = *opts.OrdersSince
	}
	transactionsSince := s.now().AddDate(0, 0, -defaultTransactionLookbackDays)
	if opts.TransactionsSince != nil {
		transactionsSince = *opts.TransactionsSince
	}

	report.Depots = s.syncDepots(ctx)
	report.Vehicles = s.syncVehicles(ctx)
	report.Drivers = s.syncDrivers(ctx)
	report.Orders = s.syncOrders(ctx, ordersSince)
	report.Transactions = s.syncTransactions(ctx, transactionsSince)
	report.Balances = s.syncBalances(ctx)
	return report
}

// syncEntity is the one reconciliation state machine shared by all six
// entity types: fetch, then apply each record inside a single transaction.
// A fetch failure short-circuits before storage is touched; an apply or
// commit failure becomes the type's error string with the tally so far.
func syncEntity[T any](
	s *Syncer,
	ctx context.Context,
	entity string,
	fetch func(context.Context) ([]T, error),
	apply func(Store, T, *EntityResult) error,
) EntityResult {
	var result EntityResult

	records, err := fetch(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "tfnsync",
			"entity": entity,
		}).Errorf("fetch failed: %v", err)
		result.Error = fmt.Sprintf("failed to retrieve %s: %v", entity, err)
		return result
	}

	err = s.store.Transaction(ctx, func(tx Store) error {
		for _, record := range records {
			if err := apply(tx, record, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"module": "tfnsync",
			"entity": entity,
		}).Errorf("reconciliation failed: %v", err)
		result.Error = err.Error()
	}
	return result
}

func (s *Syncer) syncDepots(ctx context.Context) EntityResult {
	return syncEntity(s, ctx, "depots", s.api.FetchDepots, func(tx Store, remote tfnDepot, result *EntityResult) error {
		code := strings.TrimSpace(remote.Code)
		if code == "" {
			s.logger.WithField("module", "tfnsync").Debug("depot without code skipped")
			return nil
		}

		depot, err := tx.DepotByCode(ctx, code)
		if err != nil {
			return err
		}
		created := depot == nil
		if created {
			depot = &models.Depot{DepotCode: code}
		}

		depot.Name = strings.TrimSpace(remote.Name)
		depot.Address = strings.TrimSpace(remote.Address)
		depot.City = strings.TrimSpace(remote.City)
		depot.Province = strings.TrimSpace(remote.Province)
		depot.PostalCode = strings.TrimSpace(remote.PostalCode)
		depot.Latitude = floatFromNumber(remote.Latitude)
		depot.Longitude = floatFromNumber(remote.Longitude)
		depot.Phone = strings.TrimSpace(remote.Phone)
		depot.Email = strings.TrimSpace(remote.Email)
		if remote.Active != nil {
			depot.IsActive = remote.Active
		} else if depot.IsActive == nil {
			depot.IsActive = utils.NewTrue()
		}
		now := s.now()
		depot.LastTfnSyncAt = &now

		if err := tx.SaveDepot(ctx, depot); err != nil {
			return err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Synced++
		return nil
	})
}

func (s *Syncer) syncVehicles(ctx context.Context) EntityResult {
	var index map[string]*models.Vehicle
	return syncEntity(s, ctx, "vehicles", s.api.FetchVehicles, func(tx Store, remote tfnVehicle, result *EntityResult) error {
		if index == nil {
			vehicles, err := tx.Vehicles(ctx)
			if err != nil {
				return err
			}
			index = indexVehiclesByRegistration(vehicles)
		}

		if NormalizeRegistration(remote.Registration) == "" {
			s.logger.WithFields(logrus.Fields{
				"module":       "tfnsync",
				"registration": remote.Registration,
			}).Debug("remote vehicle has empty registration, unmatched")
			return nil
		}

		vehicle := matchVehicle(index, remote.Registration)
		if vehicle == nil {
			// Vehicles are link-only: rows must pre-exist.
			s.logger.WithFields(logrus.Fields{
				"module":       "tfnsync",
				"registration": remote.Registration,
			}).Debug("no local vehicle for remote registration, skipping")
			return nil
		}

		if vehicle.TfnVehicleId == "" {
			vehicle.TfnVehicleId = remote.Registration
		}
		vehicle.TfnFleetNumber = strings.TrimSpace(remote.FleetNumber)
		vehicle.TfnStatus = strings.TrimSpace(remote.Status)
		vehicle.TankSize = decimalFromNumber(remote.TankSize)
		vehicle.CreditLimit = decimalFromNumber(remote.CreditLimit)
		vehicle.CreditBalance = decimalFromNumber(remote.Balance)
		if sub := strings.TrimSpace(remote.SubAccountNo); sub != "" && vehicle.SubAccountNo == "" {
			vehicle.SubAccountNo = sub
		}
		vehicle.IsLinkedToTfn = utils.NewTrue()
		now := s.now()
		vehicle.LastTfnSyncAt = &now

		if err := tx.SaveVehicle(ctx, vehicle); err != nil {
			return err
		}
		result.Updated++
		result.Synced++
		return nil
	})
}

func (s *Syncer) syncDrivers(ctx context.Context) EntityResult {
	return syncEntity(s, ctx, "drivers", s.api.FetchDrivers, func(tx Store, remote tfnDriver, result *EntityResult) error {
		license := strings.TrimSpace(remote.LicenseNo)
		if license == "" {
			s.logger.WithField("module", "tfnsync").Debug("driver without license number skipped")
			return nil
		}

		driver, err := tx.DriverByLicense(ctx, license)
		if err != nil {
			return err
		}
		created := driver == nil
		if created {
			firstName, lastName := SplitFullName(remote.FullName)
			driver = &models.Driver{
				LicenseNo: license,
				FirstName: firstName,
				LastName:  lastName,
			}
		}

		// Contact fields refresh on every run; identity fields only at
		// creation.
		driver.Phone = NormalizePhone(remote.Phone)
		driver.Email = strings.TrimSpace(remote.Email)
		if remote.Active != nil {
			driver.IsActive = remote.Active
		} else if driver.IsActive == nil {
			driver.IsActive = utils.NewTrue()
		}
		now := s.now()
		driver.LastTfnSyncAt = &now

		if err := tx.SaveDriver(ctx, driver); err != nil {
			return err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Synced++
		return nil
	})
}

func (s *Syncer) syncOrders(ctx context.Context, since time.Time) EntityResult {
	fetch := func(ctx context.Context) ([]tfnOrder, error) {
		return s.api.FetchOrders(ctx, since)
	}
	return syncEntity(s, ctx, "orders", fetch, func(tx Store, remote tfnOrder, result *EntityResult) error {
		if remote.Deleted {
			s.logger.WithFields(logrus.Fields{
				"module": "tfnsync",
				"order":  remote.ID,
			}).Debug("remote order flagged deleted, skipping")
			return nil
		}
		externalId := strings.TrimSpace(remote.ID)
		if externalId == "" {
			s.logger.WithField("module", "tfnsync").Debug("order without id skipped")
			return nil
		}

		// The first non-deleted entry is authoritative for fields the
		// header omits.
		entry := firstActiveEntry(remote.Entries)
		registration := strings.TrimSpace(remote.Registration)
		productCode := strings.TrimSpace(remote.ProductCode)
		validStart := remote.ValidDateStart
		validEnd := remote.ValidDateEnd
		if entry != nil {
			if registration == "" {
				registration = strings.TrimSpace(entry.Registration)
			}
			if productCode == "" {
				productCode = strings.TrimSpace(entry.ProductCode)
			}
			if strings.TrimSpace(validStart) == "" {
				validStart = entry.ValidDateStart
			}
			if strings.TrimSpace(validEnd) == "" {
				validEnd = entry.ValidDateEnd
			}
		}

		allocation := decimal.Zero
		for _, e := range remote.Entries {
			if e.Deleted {
				continue
			}
			allocation = allocation.Add(decimalFromNumber(e.Allocation))
		}
		if allocation.IsZero() {
			allocation = decimalFromNumber(remote.Allocation)
		}

		order, err := tx.OrderByExternalId(ctx, externalId)
		if err != nil {
			return err
		}
		created := order == nil
		if created {
			order = &models.FuelOrder{ExternalOrderId: externalId}
		}

		if order.VehicleId == 0 && registration != "" {
			// Order feeds echo the stored registration format, so the
			// lookup is exact, not normalized.
			vehicle, err := tx.VehicleByRegistration(ctx, registration)
			if err != nil {
				return err
			}
			if vehicle != nil {
				order.VehicleId = vehicle.ID
			}
		}

		order.Registration = registration
		order.ProductCode = productCode
		order.OrderDate = parseDate(validStart)
		order.ValidUntil = parseDate(validEnd)
		order.TotalAllocation = allocation
		order.Status = strings.TrimSpace(remote.Status)
		now := s.now()
		order.LastTfnSyncAt = &now

		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Synced++
		return nil
	})
}

func (s *Syncer) syncTransactions(ctx context.Context, since time.Time) EntityResult {
	fetch := func(ctx context.Context) ([]tfnTransaction, error) {
		return s.api.FetchTransactions(ctx, since)
	}
	return syncEntity(s, ctx, "transactions", fetch, func(tx Store, remote tfnTransaction, result *EntityResult) error {
		externalId := strings.TrimSpace(remote.ID)
		if externalId == "" {
			s.logger.WithField("module", "tfnsync").Debug("transaction without id skipped")
			return nil
		}

		existing, err := tx.TransactionByExternalId(ctx, externalId)
		if err != nil {
			return err
		}
		if existing != nil {
			// Transactions are append-only: only the sync timestamp moves.
			now := s.now()
			existing.LastTfnSyncAt = &now
			if err := tx.SaveTransaction(ctx, existing); err != nil {
				return err
			}
			result.Synced++
			return nil
		}

		transaction := &models.FuelTransaction{
			ExternalTransactionId: externalId,
			Registration:          strings.TrimSpace(remote.Registration),
			ProductCode:           strings.TrimSpace(remote.ProductCode),
			TransactionTime:       parseTimeOrNow(remote.TransactionTime, s.now),
			Odometer:              intFromNumber(remote.Odometer),
			Volume:                decimalFromNumber(remote.Volume),
			UnitPrice:             decimalFromNumber(remote.UnitPrice),
			Amount:                decimalFromNumber(remote.Amount),
		}

		if transaction.Registration != "" {
			vehicle, err := tx.VehicleByRegistration(ctx, transaction.Registration)
			if err != nil {
				return err
			}
			if vehicle != nil {
				transaction.VehicleId = vehicle.ID
			}
		}

		if license := strings.TrimSpace(remote.DriverLicenseNo); license != "" {
			driver, err := tx.DriverByLicense(ctx, license)
			if err != nil {
				return err
			}
			if driver != nil {
				transaction.DriverId = driver.ID
			}
		}
		if transaction.DriverId == 0 {
			if phone := NormalizePhone(remote.DriverPhone); phone != "" {
				driver, err := tx.DriverByPhone(ctx, phone)
				if err != nil {
					return err
				}
				if driver != nil {
					transaction.DriverId = driver.ID
				}
			}
		}

		if depotCode := strings.TrimSpace(remote.DepotCode); depotCode != "" {
			depot, err := tx.DepotByCode(ctx, depotCode)
			if err != nil {
				return err
			}
			if depot != nil {
				transaction.DepotId = depot.ID
			}
		}

		if transaction.VehicleId != 0 && transaction.Odometer > 0 {
			previous, err := tx.LastTransactionWithOdometer(ctx, transaction.VehicleId, transaction.TransactionTime)
			if err != nil {
				return err
			}
			if previous != nil {
				distance := transaction.Odometer - previous.Odometer
				if distance > 0 && previous.Volume.IsPositive() {
					transaction.DistanceSinceLastFill = distance
					transaction.FuelEfficiency = decimal.NewFromInt(int64(distance)).Div(previous.Volume)
				}
			}
		}

		now := s.now()
		transaction.LastTfnSyncAt = &now

		if err := tx.SaveTransaction(ctx, transaction); err != nil {
			return err
		}
		result.Created++
		result.Synced++
		return nil
	})
}

func (s *Syncer) syncBalances(ctx context.Context) EntityResult {
	return syncEntity(s, ctx, "accountBalances", s.api.FetchBalances, func(tx Store, remote tfnBalance, result *EntityResult) error {
		subAccountNo := strings.TrimSpace(remote.SubAccountNo)
		if subAccountNo == "" {
			s.logger.WithField("module", "tfnsync").Debug("balance without sub-account number skipped")
			return nil
		}

		balance, err := tx.BalanceBySubAccount(ctx, subAccountNo)
		if err != nil {
			return err
		}
		vehicle, err := tx.VehicleBySubAccount(ctx, subAccountNo)
		if err != nil {
			return err
		}

		created := balance == nil
		if created {
			balance = &models.VehicleAccountBalance{SubAccountNo: subAccountNo}
			if vehicle != nil {
				balance.VehicleId = vehicle.ID
			}
		}

		// Snapshot semantics: always overwrite with the latest figures.
		balance.Balance = decimalFromNumber(remote.Balance)
		balance.CreditLimit = decimalFromNumber(remote.CreditLimit)
		balance.AvailableCredit = decimalFromNumber(remote.AvailableCredit)
		balance.AsOfDate = parseDate(remote.AsOfDate)
		now := s.now()
		balance.LastTfnSyncAt = &now

		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}

		if vehicle != nil {
			vehicle.CreditLimit = balance.CreditLimit
			vehicle.CreditBalance = balance.Balance
			vehicle.LastTfnSyncAt = &now
			if err := tx.SaveVehicle(ctx, vehicle); err != nil {
				return err
			}
		}

		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Synced++
		return nil
	})
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	if num.String() == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return decimal.Zero
}

func floatFromNumber(num json.Number) float64 {
	if f, err := num.Float64(); err == nil {
		return f
	}
	return 0
}

func intFromNumber(num json.Number) int {
	if n, err := num.Int64(); err == nil {
		return int(n)
	}
	if f, err := num.Float64(); err == nil {
		return int(f)
	}
	return 0
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func parseTimeOrNow(value string, now func() time.Time) time.Time {
	if t := parseDate(value); t != nil {
		return *t
	}
	return now()
}
