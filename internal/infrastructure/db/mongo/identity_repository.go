package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gigmarket/identity/internal/core/domain"
)

const (
	collectionIdentities = "identities"

	indexEmail  = "uniq_email"
	indexWallet = "uniq_wallet_address"

	storeTimeout = 5 * time.Second
)

// IdentityRepository implements ports.IdentityRepository.
type IdentityRepository struct {
	col *mongo.Collection
}

func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{col: db.Collection(collectionIdentities)}
}

type mongoFreelancerProfile struct {
	Skills     []string `bson:"skills,omitempty"`
	Bio        string   `bson:"bio,omitempty"`
	HourlyRate float64  `bson:"hourly_rate,omitempty"`
	Location   string   `bson:"location,omitempty"`
}

type mongoClientProfile struct {
	CompanySize     string `bson:"company_size,omitempty"`
	Industry        string `bson:"industry,omitempty"`
	CompanyLocation string `bson:"company_location,omitempty"`
	Bio             string `bson:"bio,omitempty"`
}

type mongoIdentity struct {
	ID            primitive.ObjectID      `bson:"_id,omitempty"`
	Name          string                  `bson:"name"`
	Email         string                  `bson:"email,omitempty"`
	WalletAddress string                  `bson:"wallet_address,omitempty"`
	PasswordHash  string                  `bson:"password_hash,omitempty"`
	Role          string                  `bson:"role"`
	Freelancer    *mongoFreelancerProfile `bson:"freelancer_profile,omitempty"`
	Client        *mongoClientProfile     `bson:"client_profile,omitempty"`
	CreatedAt     time.Time               `bson:"created_at"`
	UpdatedAt     time.Time               `bson:"updated_at"`
}

func toMongoIdentity(i *domain.Identity) mongoIdentity {
	doc := mongoIdentity{
		Name:          i.Name,
		Email:         i.Email,
		WalletAddress: i.WalletAddress,
		PasswordHash:  i.PasswordHash,
		Role:          string(i.Role),
		CreatedAt:     i.CreatedAt.UTC(),
		UpdatedAt:     i.UpdatedAt.UTC(),
	}
	switch p := i.Profile.(type) {
	case domain.FreelancerProfile:
		doc.Freelancer = &mongoFreelancerProfile{Skills: p.Skills, Bio: p.Bio, HourlyRate: p.HourlyRate, Location: p.Location}
	case domain.ClientProfile:
		doc.Client = &mongoClientProfile{CompanySize: p.CompanySize, Industry: p.Industry, CompanyLocation: p.CompanyLocation, Bio: p.Bio}
	}
	return doc
}

func (m mongoIdentity) toDomain() *domain.Identity {
	role := domain.Role(m.Role)
	identity := &domain.Identity{
		ID:            m.ID.Hex(),
		Name:          m.Name,
		Email:         m.Email,
		WalletAddress: m.WalletAddress,
		PasswordHash:  m.PasswordHash,
		Role:          role,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	switch {
	case role == domain.RoleFreelancer && m.Freelancer != nil:
		identity.Profile = domain.FreelancerProfile{
			Skills: m.Freelancer.Skills, Bio: m.Freelancer.Bio,
			HourlyRate: m.Freelancer.HourlyRate, Location: m.Freelancer.Location,
		}
	case role == domain.RoleClient && m.Client != nil:
		identity.Profile = domain.ClientProfile{
			CompanySize: m.Client.CompanySize, Industry: m.Client.Industry,
			CompanyLocation: m.Client.CompanyLocation, Bio: m.Client.Bio,
		}
	default:
		identity.Profile = domain.EmptyProfile(role)
	}
	return identity
}

// Create inserts a new identity and returns it with its id.
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	doc := toMongoIdentity(identity)
	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, mapWriteError(err, domain.ErrDuplicateWallet)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert identity: unexpected id type %T", res.InsertedID)
	}
	doc.ID = oid
	return doc.toDomain(), nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByWallet expects a normalized (lower-case) address.
func (r *IdentityRepository) FindByWallet(ctx context.Context, address string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"wallet_address": address})
}

// Update replaces the mutable fields of the identity. Empty email or wallet
// removes the field so the partial unique indexes ignore the document.
func (r *IdentityRepository) Update(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(identity.ID)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}
	doc := toMongoIdentity(identity)

	set := bson.M{
		"name":       doc.Name,
		"role":       doc.Role,
		"updated_at": doc.UpdatedAt,
	}
	unset := bson.M{}
	setOrUnset(set, unset, "email", doc.Email)
	setOrUnset(set, unset, "wallet_address", doc.WalletAddress)
	if doc.Freelancer != nil {
		set["freelancer_profile"] = doc.Freelancer
	} else {
		unset["freelancer_profile"] = ""
	}
	if doc.Client != nil {
		set["client_profile"] = doc.Client
	} else {
		unset["client_profile"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return r.findOneAndUpdate(ctx, oid, update, domain.ErrDuplicateWallet)
}

// SetWallet binds or, with an empty address, removes the wallet.
func (r *IdentityRepository) SetWallet(ctx context.Context, id, address string) (*domain.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrIdentityNotFound
	}
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"wallet_address": address, "updated_at": now}}
	if address == "" {
		update = bson.M{
			"$set":   bson.M{"updated_at": now},
			"$unset": bson.M{"wallet_address": ""},
		}
	}
	return r.findOneAndUpdate(ctx, oid, update, domain.ErrWalletAlreadyLinked)
}

// EnsureIndexes creates the unique partial indexes that hold email and wallet
// uniqueness. Documents without the field are not indexed.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName(indexEmail).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{{Key: "wallet_address", Value: 1}},
			Options: options.Index().
				SetName(indexWallet).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"wallet_address": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var doc mongoIdentity
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) findOneAndUpdate(ctx context.Context, oid primitive.ObjectID, update bson.M, walletErr error) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoIdentity
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, mapWriteError(err, walletErr)
	}
	return doc.toDomain(), nil
}

func setOrUnset(set, unset bson.M, field, value string) {
	if value == "" {
		unset[field] = ""
		return
	}
	set[field] = value
}

// mapWriteError turns a unique-index violation into the domain error for the
// index that was hit.
func mapWriteError(err error, walletErr error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("write identity: %w", err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexWallet):
		return walletErr
	case strings.Contains(msg, indexEmail):
		return domain.ErrDuplicateEmail
	}
	return fmt.Errorf("write identity: %w", err)
}
