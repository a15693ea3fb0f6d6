package tfnsync

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/fleet_backend/models"
	"gorm.io/gorm"
)

// Store is the storage boundary the reconcilers write through: point
// lookups by each entity type's matching key, saves, and a transaction
// wrapper so one entity type's pass commits atomically. Lookups return
// (nil, nil) when no row matches.
type Store interface {
	Transaction(ctx context.Context, fn func(Store) error) error

	DepotByCode(ctx context.Context, code string) (*models.Depot, error)
	SaveDepot(ctx context.Context, depot *models.Depot) error

	Vehicles(ctx context.Context) ([]*models.Vehicle, error)
	VehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error)
	VehicleBySubAccount(ctx context.Context, subAccountNo string) (*models.Vehicle, error)
	SaveVehicle(ctx context.Context, vehicle *models.Vehicle) error

	DriverByLicense(ctx context.Context, licenseNo string) (*models.Driver, error)
	DriverByPhone(ctx context.Context, phone string) (*models.Driver, error)
	SaveDriver(ctx context.Context, driver *models.Driver) error

	OrderByExternalId(ctx context.Context, externalId string) (*models.FuelOrder, error)
	SaveOrder(ctx context.Context, order *models.FuelOrder) error

	TransactionByExternalId(ctx context.Context, externalId string) (*models.FuelTransaction, error)
	LastTransactionWithOdometer(ctx context.Context, vehicleId int, before time.Time) (*models.FuelTransaction, error)
	SaveTransaction(ctx context.Context, transaction *models.FuelTransaction) error

	BalanceBySubAccount(ctx context.Context, subAccountNo string) (*models.VehicleAccountBalance, error)
	SaveBalance(ctx context.Context, balance *models.VehicleAccountBalance) error
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func takeOrNil[T any](err error, record *T) (*T, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *gormStore) DepotByCode(ctx context.Context, code string) (*models.Depot, error) {
	var depot models.Depot
	err := s.db.WithContext(ctx).Where("depot_code = ?", code).Take(&depot).Error
	return takeOrNil(err, &depot)
}

func (s *gormStore) SaveDepot(ctx context.Context, depot *models.Depot) error {
	return s.db.WithContext(ctx).Save(depot).Error
}

func (s *gormStore) Vehicles(ctx context.Context) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	if err := s.db.WithContext(ctx).Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (s *gormStore) VehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.db.WithContext(ctx).Where("registration_number = ?", registration).Take(&vehicle).Error
	return takeOrNil(err, &vehicle)
}

func (s *gormStore) VehicleBySubAccount(ctx context.Context, subAccountNo string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := s.db.WithContext(ctx).Where("sub_account_no = ?", subAccountNo).Take(&vehicle).Error
	return takeOrNil(err, &vehicle)
}

func (s *gormStore) SaveVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return s.db.WithContext(ctx).Save(vehicle).Error
}

func (s *gormStore) DriverByLicense(ctx context.Context, licenseNo string) (*models.Driver, error) {
	var driver models.Driver
	err := s.db.WithContext(ctx).Where("license_no = ?", licenseNo).Take(&driver).Error
	return takeOrNil(err, &driver)
}

func (s *gormStore) DriverByPhone(ctx context.Context, phone string) (*models.Driver, error) {
	var driver models.Driver
	err := s.db.WithContext(ctx).Where("phone = ?", phone).Take(&driver).Error
	return takeOrNil(err, &driver)
}

func (s *gormStore) SaveDriver(ctx context.Context, driver *models.Driver) error {
	return s.db.WithContext(ctx).Save(driver).Error
}

func (s *gormStore) OrderByExternalId(ctx context.Context, externalId string) (*models.FuelOrder, error) {
	var order models.FuelOrder
	err := s.db.WithContext(ctx).Where("external_order_id = ?", externalId).Take(&order).Error
	return takeOrNil(err, &order)
}

func (s *gormStore) SaveOrder(ctx context.Context, order *models.FuelOrder) error {
	return s.db.WithContext(ctx).Save(order).Error
}

func (s *gormStore) TransactionByExternalId(ctx context.Context, externalId string) (*models.FuelTransaction, error) {
	var transaction models.FuelTransaction
	err := s.db.WithContext(ctx).Where("external_transaction_id = ?", externalId).Take(&transaction).Error
	return takeOrNil(err, &transaction)
}

func (s *gormStore) LastTransactionWithOdometer(ctx context.Context, vehicleId int, before time.Time) (*models.FuelTransaction, error) {
	var transaction models.FuelTransaction
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND odometer > 0 AND transaction_time < ?", vehicleId, before).
		Order("transaction_time desc").
		Take(&transaction).Error
	return takeOrNil(err, &transaction)
}

func (s *gormStore) SaveTransaction(ctx context.Context, transaction *models.FuelTransaction) error {
	return s.db.WithContext(ctx).Save(transaction).Error
}

func (s *gormStore) BalanceBySubAccount(ctx context.Context, subAccountNo string) (*models.VehicleAccountBalance, error) {
	var balance models.VehicleAccountBalance
	err := s.db.WithContext(ctx).Where("sub_account_no = ?", subAccountNo).Take(&balance).Error
	return takeOrNil(err, &balance)
}

func (s *gormStore) SaveBalance(ctx context.Context, balance *models.VehicleAccountBalance) error {
	return s.db.WithContext(ctx).Save(balance).Error
}
