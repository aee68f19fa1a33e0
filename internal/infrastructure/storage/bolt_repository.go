package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
)

const (
	contractsBucket = "contract_awards"
	keysBucket      = "contract_keys"
)

// BoltRepository stores leads in an embedded bbolt file. Records are JSON values keyed
// by a big-endian id; a second bucket maps "STATE/CONTRACT_ID" to that id.
type BoltRepository struct {
	db *bbolt.DB
}

var _ ports.ContractRepository = (*BoltRepository)(nil)

// NewBoltRepository opens (or creates) the database file and its buckets.
func NewBoltRepository(path string) (*BoltRepository, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(contractsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(keysBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltRepository{db: db}, nil
}

// Begin starts a writable transaction. Only one unit of work can be open at a time.
func (r *BoltRepository) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	tx, err := r.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("begin bolt tx: %w", err)
	}
	return &boltUnit{tx: tx}, nil
}

// List scans every record and applies the filter.
func (r *BoltRepository) List(ctx context.Context, filter domain.LeadFilter) ([]domain.ContractAward, error) {
	leads := make([]domain.ContractAward, 0)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(contractsBucket)).ForEach(func(_, v []byte) error {
			var award domain.ContractAward
			if err := json.Unmarshal(v, &award); err != nil {
				return fmt.Errorf("unmarshaling contract award: %w", err)
			}
			if filter.Matches(award) {
				leads = append(leads, award)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	domain.SortByScore(leads)
	return leads, nil
}

// Get retrieves a lead by id.
func (r *BoltRepository) Get(ctx context.Context, id int64) (domain.ContractAward, error) {
	var award domain.ContractAward
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		award, err = getAward(tx, id)
		return err
	})
	return award, err
}

// UpdateStatus rewrites only the status of a stored lead.
func (r *BoltRepository) UpdateStatus(ctx context.Context, id int64, status domain.ContractStatus) (domain.ContractAward, error) {
	var award domain.ContractAward
	err := r.db.Update(func(tx *bbolt.Tx) error {
		var err error
		award, err = getAward(tx, id)
		if err != nil {
			return err
		}
		award.Status = status
		return putAward(tx, award)
	})
	if err != nil {
		return domain.ContractAward{}, err
	}
	return award, nil
}

// Ping runs an empty read transaction.
func (r *BoltRepository) Ping(ctx context.Context) error {
	return r.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(contractsBucket)) == nil {
			return errors.New("contract bucket missing")
		}
		return nil
	})
}

// Close closes the database file.
func (r *BoltRepository) Close() error {
	return r.db.Close()
}

type boltUnit struct {
	tx *bbolt.Tx
}

func (u *boltUnit) FindByKey(ctx context.Context, key domain.ContractKey) (domain.ContractAward, bool, error) {
	raw := u.tx.Bucket([]byte(keysBucket)).Get([]byte(key.String()))
	if raw == nil {
		return domain.ContractAward{}, false, nil
	}

	award, err := getAward(u.tx, decodeID(raw))
	if err != nil {
		return domain.ContractAward{}, false, err
	}
	return award, true, nil
}

func (u *boltUnit) Upsert(ctx context.Context, award domain.ContractAward) (domain.ContractAward, error) {
	existing, found, err := u.FindByKey(ctx, award.Key())
	if err != nil {
		return domain.ContractAward{}, err
	}

	if found {
		award.ID = existing.ID
		award.Status = existing.Status
		award.CreatedAt = existing.CreatedAt
	} else {
		seq, err := u.tx.Bucket([]byte(contractsBucket)).NextSequence()
		if err != nil {
			return domain.ContractAward{}, fmt.Errorf("next id: %w", err)
		}
		award.ID = int64(seq)
		if award.Status == "" {
			award.Status = domain.StatusNew
		}
	}

	if err := putAward(u.tx, award); err != nil {
		return domain.ContractAward{}, err
	}
	if err := u.tx.Bucket([]byte(keysBucket)).Put([]byte(award.Key().String()), encodeID(award.ID)); err != nil {
		return domain.ContractAward{}, fmt.Errorf("index contract key: %w", err)
	}
	return award, nil
}

func (u *boltUnit) Commit() error {
	return u.tx.Commit()
}

func (u *boltUnit) Rollback() error {
	return u.tx.Rollback()
}

func getAward(tx *bbolt.Tx, id int64) (domain.ContractAward, error) {
	var award domain.ContractAward
	data := tx.Bucket([]byte(contractsBucket)).Get(encodeID(id))
	if data == nil {
		return award, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if err := json.Unmarshal(data, &award); err != nil {
		return award, fmt.Errorf("unmarshaling contract award: %w", err)
	}
	return award, nil
}

func putAward(tx *bbolt.Tx, award domain.ContractAward) error {
	data, err := json.Marshal(award)
	if err != nil {
		return fmt.Errorf("marshaling contract award: %w", err)
	}
	return tx.Bucket([]byte(contractsBucket)).Put(encodeID(award.ID), data)
}

func encodeID(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func decodeID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
