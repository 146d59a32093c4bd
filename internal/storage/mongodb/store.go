// Package mongodb implements storage interfaces using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-edi/internal/storage"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	// Collections
	partners     *mongo.Collection
	keyPairs     *mongo.Collection
	certs        *mongo.Collection
	logs         *mongo.Collection
	pollJobs     *mongo.Collection
	deliveryJobs *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:       client,
		db:           db,
		partners:     db.Collection("partners"),
		keyPairs:     db.Collection("key_pairs"),
		certs:        db.Collection("certificates"),
		logs:         db.Collection("transport_logs"),
		pollJobs:     db.Collection("poll_jobs"),
		deliveryJobs: db.Collection("delivery_jobs"),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.partners.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "active", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating partner indexes: %w", err)
	}

	_, err = s.keyPairs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating key pair indexes: %w", err)
	}

	_, err = s.certs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "not_after", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating certificate indexes: %w", err)
	}

	_, err = s.logs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "partner_id", Value: 1}, {Key: "started_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "started_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating transport log indexes: %w", err)
	}

	_, err = s.pollJobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "partner_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating poll job indexes: %w", err)
	}

	_, err = s.deliveryJobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "next_retry_at", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "partner_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating delivery job indexes: %w", err)
	}

	return nil
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// PartnerStore implementation

func (s *Store) CreatePartner(ctx context.Context, p *storage.TradingPartner) error {
	_, err := s.partners.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("partner with code %s already exists", p.Code)
	}
	return err
}

func (s *Store) GetPartner(ctx context.Context, tenantID, id string) (*storage.TradingPartner, error) {
	var p storage.TradingPartner
	err := s.partners.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &p, err
}

func (s *Store) GetPartnerByCode(ctx context.Context, tenantID, code string) (*storage.TradingPartner, error) {
	var p storage.TradingPartner
	err := s.partners.FindOne(ctx, bson.M{"tenant_id": tenantID, "code": code}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &p, err
}

func (s *Store) UpdatePartner(ctx context.Context, p *storage.TradingPartner) error {
	res, err := s.partners.ReplaceOne(ctx, bson.M{"_id": p.ID, "tenant_id": p.TenantID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePartner(ctx context.Context, tenantID, id string) error {
	res, err := s.partners.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListPartners(ctx context.Context, tenantID string) ([]*storage.TradingPartner, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cursor, err := s.partners.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var partners []*storage.TradingPartner
	if err := cursor.All(ctx, &partners); err != nil {
		return nil, err
	}
	return partners, nil
}

// KeyPairStore implementation

func (s *Store) CreateKeyPair(ctx context.Context, kp *storage.KeyPair) error {
	_, err := s.keyPairs.InsertOne(ctx, kp)
	return err
}

func (s *Store) GetKeyPair(ctx context.Context, tenantID, id string) (*storage.KeyPair, error) {
	var kp storage.KeyPair
	err := s.keyPairs.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&kp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &kp, err
}

func (s *Store) DeleteKeyPair(ctx context.Context, tenantID, id string) error {
	res, err := s.keyPairs.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListKeyPairs(ctx context.Context, tenantID string) ([]*storage.KeyPair, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.keyPairs.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var pairs []*storage.KeyPair
	if err := cursor.All(ctx, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// CertificateStore implementation

func (s *Store) CreateCertificate(ctx context.Context, cert *storage.Certificate) error {
	_, err := s.certs.InsertOne(ctx, cert)
	return err
}

func (s *Store) GetCertificate(ctx context.Context, tenantID, id string) (*storage.Certificate, error) {
	var cert storage.Certificate
	err := s.certs.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&cert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &cert, err
}

func (s *Store) DeleteCertificate(ctx context.Context, tenantID, id string) error {
	res, err := s.certs.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListCertificates(ctx context.Context, tenantID string) ([]*storage.Certificate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.certs.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var certs []*storage.Certificate
	if err := cursor.All(ctx, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

func (s *Store) ListCertificatesExpiringBefore(ctx context.Context, tenantID string, cutoff time.Time) ([]*storage.Certificate, error) {
	query := bson.M{"tenant_id": tenantID, "not_after": bson.M{"$lt": cutoff}}
	opts := options.Find().SetSort(bson.D{{Key: "not_after", Value: 1}})
	cursor, err := s.certs.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var certs []*storage.Certificate
	if err := cursor.All(ctx, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// TransportLogStore implementation

func (s *Store) CreateLogEntry(ctx context.Context, entry *storage.TransportLogEntry) error {
	_, err := s.logs.InsertOne(ctx, entry)
	return err
}

func (s *Store) GetLogEntry(ctx context.Context, tenantID, id string) (*storage.TransportLogEntry, error) {
	var entry storage.TransportLogEntry
	err := s.logs.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &entry, err
}

func (s *Store) UpdateLogEntry(ctx context.Context, entry *storage.TransportLogEntry) error {
	res, err := s.logs.ReplaceOne(ctx, bson.M{"_id": entry.ID, "tenant_id": entry.TenantID}, entry)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func logQuery(tenantID string, filter *storage.LogFilter) bson.M {
	query := bson.M{"tenant_id": tenantID}
	if filter != nil {
		if filter.PartnerID != "" {
			query["partner_id"] = filter.PartnerID
		}
		if filter.Protocol != "" {
			query["protocol"] = filter.Protocol
		}
		if filter.Direction != "" {
			query["direction"] = filter.Direction
		}
		if filter.Status != "" {
			query["status"] = filter.Status
		}
	}
	return query
}

func (s *Store) QueryLogEntries(ctx context.Context, tenantID string, filter *storage.LogFilter) ([]*storage.TransportLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if filter != nil && filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
		if filter.Page > 1 {
			opts.SetSkip(int64((filter.Page - 1) * filter.Limit))
		}
	}

	cursor, err := s.logs.Find(ctx, logQuery(tenantID, filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*storage.TransportLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CountLogEntries(ctx context.Context, tenantID string, filter *storage.LogFilter) (int64, error) {
	return s.logs.CountDocuments(ctx, logQuery(tenantID, filter))
}

func (s *Store) DeleteLogEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.logs.DeleteMany(ctx, bson.M{"started_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// PollJobStore implementation

func (s *Store) CreatePollJob(ctx context.Context, job *storage.PollJob) error {
	_, err := s.pollJobs.InsertOne(ctx, job)
	return err
}

func (s *Store) GetPollJob(ctx context.Context, tenantID, id string) (*storage.PollJob, error) {
	var job storage.PollJob
	err := s.pollJobs.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &job, err
}

func (s *Store) UpdatePollJob(ctx context.Context, job *storage.PollJob) error {
	res, err := s.pollJobs.ReplaceOne(ctx, bson.M{"_id": job.ID, "tenant_id": job.TenantID}, job)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePollJob(ctx context.Context, tenantID, id string) error {
	res, err := s.pollJobs.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListPollJobs(ctx context.Context, tenantID string) ([]*storage.PollJob, error) {
	cursor, err := s.pollJobs.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*storage.PollJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeliveryJobStore implementation

func (s *Store) CreateDeliveryJob(ctx context.Context, job *storage.DeliveryJob) error {
	_, err := s.deliveryJobs.InsertOne(ctx, job)
	return err
}

func (s *Store) GetDeliveryJob(ctx context.Context, tenantID, id string) (*storage.DeliveryJob, error) {
	var job storage.DeliveryJob
	err := s.deliveryJobs.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	return &job, err
}

func (s *Store) UpdateDeliveryJob(ctx context.Context, job *storage.DeliveryJob) error {
	res, err := s.deliveryJobs.ReplaceOne(ctx, bson.M{"_id": job.ID, "tenant_id": job.TenantID}, job)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListDeliveryJobs(ctx context.Context, tenantID string, filter *storage.JobFilter) ([]*storage.DeliveryJob, error) {
	query := bson.M{"tenant_id": tenantID}
	if filter != nil {
		if filter.PartnerID != "" {
			query["partner_id"] = filter.PartnerID
		}
		if filter.Status != "" {
			query["status"] = filter.Status
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil && filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := s.deliveryJobs.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*storage.DeliveryJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) GetPendingDeliveries(ctx context.Context, tenantID string, limit int) ([]*storage.DeliveryJob, error) {
	now := time.Now()
	query := bson.M{
		"tenant_id": tenantID,
		"status":    storage.JobPending,
		"$or": []bson.M{
			{"next_retry_at": nil},
			{"next_retry_at": bson.M{"$lte": now}},
		},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.deliveryJobs.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []*storage.DeliveryJob
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) CountDeliveriesByStatus(ctx context.Context, tenantID string) (map[storage.JobStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tenant_id": tenantID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := s.deliveryJobs.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[storage.JobStatus]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status storage.JobStatus `bson:"_id"`
			Count  int64             `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		counts[row.Status] = row.Count
	}
	return counts, nil
}
