// Package database implements the persistent store on MongoDB.
//
// Every correctness-critical mutation (ticket claim, balance adjustment,
// status transition, referral credit) is a single conditional update on
// one document: the filter carries the precondition and a zero modified
// count means the precondition did not hold. Nothing here reads and then
// writes in two steps.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"luckydrop/entity"
	"luckydrop/internal/config"
)

const (
	collectionUsers   = "users"
	collectionPots    = "pots"
	collectionPayouts = "payouts"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrStorageUnavailable, err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

// EnsureIndexes creates the unique constraints the engine relies on:
// one user per telegram id, one pot per date.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)
	unique := options.Index().SetUnique(true)

	_, err = db.Collection(collectionUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "telegram_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "referral_code", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = db.Collection(collectionPots).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}}, Options: unique,
	})
	if err != nil {
		return fmt.Errorf("pots index: %w", err)
	}

	_, err = db.Collection(collectionPayouts).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("payouts index: %w", err)
	}
	return nil
}

// -------- users --------

func (m *MongoDB) GetUser(ctx context.Context, telegramId int64) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	var user entity.User
	err = collection.FindOne(ctx, bson.D{{Key: "telegram_id", Value: telegramId}}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (m *MongoDB) GetUserByReferralCode(ctx context.Context, code string) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	var user entity.User
	err = collection.FindOne(ctx, bson.D{{Key: "referral_code", Value: code}}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by referral code: %w", err)
	}
	return &user, nil
}

func (m *MongoDB) CreateUser(ctx context.Context, user *entity.User) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	_, err = collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return nil // registration is idempotent
	}
	return err
}

// AdjustBalance applies both deltas in one atomic $inc. Debits carry
// their guard in the filter: the update matches only while the resulting
// balance stays non-negative, so concurrent debits cannot overdraw.
func (m *MongoDB) AdjustBalance(ctx context.Context, telegramId int64, realDelta, bonusDelta float64) (*entity.User, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "telegram_id", Value: telegramId}}
	if realDelta < 0 {
		filter = append(filter, bson.E{Key: "real_balance", Value: bson.D{{Key: "$gte", Value: -realDelta}}})
	}
	if bonusDelta < 0 {
		filter = append(filter, bson.E{Key: "bonus_balance", Value: bson.D{{Key: "$gte", Value: -bonusDelta}}})
	}
	update := bson.D{{Key: "$inc", Value: bson.D{
		{Key: "real_balance", Value: realDelta},
		{Key: "bonus_balance", Value: bonusDelta},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	collection := connection.Database(m.database).Collection(collectionUsers)
	var user entity.User
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Filter missed: either the user is unknown or a guard failed.
		if _, lookupErr := m.GetUser(ctx, telegramId); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, entity.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("adjust balance: %w", err)
	}
	return &user, nil
}

func (m *MongoDB) SetUpi(ctx context.Context, telegramId int64, upiId string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	_, err = collection.UpdateOne(ctx,
		bson.D{{Key: "telegram_id", Value: telegramId}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "upi_id", Value: upiId}}}},
	)
	return err
}

func (m *MongoDB) SetLastTicket(ctx context.Context, telegramId int64, code string, at time.Time) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	_, err = collection.UpdateOne(ctx,
		bson.D{{Key: "telegram_id", Value: telegramId}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "last_ticket_code", Value: code},
			{Key: "last_ticket_date", Value: at},
		}}},
	)
	return err
}

// CreditReferral credits the referrer's bonus balance once per referred
// user. The $ne predicate and the $addToSet marker live in the same
// update, so two concurrent first purchases credit exactly once.
func (m *MongoDB) CreditReferral(ctx context.Context, referrerId, referredId int64, bonus float64) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	result, err := collection.UpdateOne(ctx,
		bson.D{
			{Key: "telegram_id", Value: referrerId},
			{Key: "referred_tickets", Value: bson.D{{Key: "$ne", Value: referredId}}},
		},
		bson.D{
			{Key: "$addToSet", Value: bson.D{{Key: "referred_tickets", Value: referredId}}},
			{Key: "$inc", Value: bson.D{
				{Key: "bonus_balance", Value: bonus},
				{Key: "referral_count", Value: 1},
			}},
		},
	)
	if err != nil {
		return false, fmt.Errorf("credit referral: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *MongoDB) CountUsers(ctx context.Context) (int64, error) {
	connection, err := m.connect()
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	return collection.CountDocuments(ctx, bson.D{})
}

// TotalBalances sums all user balances, used by the admin stats report.
func (m *MongoDB) TotalBalances(ctx context.Context) (real, bonus float64, err error) {
	connection, err := m.connect()
	if err != nil {
		return 0, 0, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionUsers)
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_real", Value: bson.D{{Key: "$sum", Value: "$real_balance"}}},
			{Key: "total_bonus", Value: bson.D{{Key: "$sum", Value: "$bonus_balance"}}},
		}}},
	}
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("total balances: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		TotalReal  float64 `bson:"total_real"`
		TotalBonus float64 `bson:"total_bonus"`
	}
	if err = cursor.All(ctx, &result); err != nil {
		return 0, 0, err
	}
	if len(result) == 0 {
		return 0, 0, nil
	}
	return result[0].TotalReal, result[0].TotalBonus, nil
}

// -------- pots --------

func (m *MongoDB) InsertPot(ctx context.Context, pot *entity.Pot) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionPots)
	_, err = collection.InsertOne(ctx, pot)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicatePot
	}
	if err != nil {
		return fmt.Errorf("insert pot: %w", err)
	}
	return nil
}

func (m *MongoDB) PotByDate(ctx context.Context, date string) (*entity.Pot, error) {
	return m.findPot(ctx, bson.D{{Key: "date", Value: date}})
}

func (m *MongoDB) PotById(ctx context.Context, id string) (*entity.Pot, error) {
	return m.findPot(ctx, bson.D{{Key: "_id", Value: id}})
}

func (m *MongoDB) findPot(ctx context.Context, filter bson.D) (*entity.Pot, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionPots)
	var pot entity.Pot
	err = collection.FindOne(ctx, filter).Decode(&pot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrPotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pot: %w", err)
	}
	return &pot, nil
}

// OpenPots lists every pot still in OPEN state, for the startup
// recovery scan.
func (m *MongoDB) OpenPots(ctx context.Context) ([]*entity.Pot, error) {
	return m.potsByStatus(ctx, entity.PotOpen)
}

// ClosedPots lists every pot awaiting its reveal, any date included.
func (m *MongoDB) ClosedPots(ctx context.Context) ([]*entity.Pot, error) {
	return m.potsByStatus(ctx, entity.PotClosed)
}

func (m *MongoDB) potsByStatus(ctx context.Context, status entity.PotStatus) ([]*entity.Pot, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionPots)
	cursor, err := collection.Find(ctx, bson.D{{Key: "status", Value: status}})
	if err != nil {
		return nil, fmt.Errorf("find %s pots: %w", status, err)
	}
	defer cursor.Close(ctx)

	var pots []*entity.Pot
	if err = cursor.All(ctx, &pots); err != nil {
		return nil, err
	}
	return pots, nil
}

// TicketCodeInUse checks the short-term uniqueness window for a
// candidate code: any non-terminal pot's pool and every user's most
// recent ticket.
func (m *MongoDB) TicketCodeInUse(ctx context.Context, code string) (bool, error) {
	connection, err := m.connect()
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)
	n, err := db.Collection(collectionUsers).CountDocuments(ctx, bson.D{{Key: "last_ticket_code", Value: code}})
	if err != nil {
		return false, fmt.Errorf("code lookup: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	n, err = db.Collection(collectionPots).CountDocuments(ctx, bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{entity.PotOpen, entity.PotClosed}}}},
		{Key: "tickets.code", Value: code},
	})
	if err != nil {
		return false, fmt.Errorf("code lookup: %w", err)
	}
	return n > 0, nil
}

// ClaimTicket flips one ticket to claimed and appends the participant in
// a single conditional update. The filter encodes every claim
// precondition; when it misses, the current document is read once purely
// to name the reason.
func (m *MongoDB) ClaimTicket(ctx context.Context, potId string, telegramId int64, code string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	filter := bson.D{
		{Key: "_id", Value: potId},
		{Key: "status", Value: entity.PotOpen},
		{Key: "participants.telegram_id", Value: bson.D{{Key: "$ne", Value: telegramId}}},
		{Key: "tickets", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
			{Key: "code", Value: code},
			{Key: "claimed", Value: false},
		}}}},
		{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{
			bson.D{{Key: "$size", Value: "$participants"}},
			"$max_users",
		}}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "tickets.$[t].claimed", Value: true}}},
		{Key: "$push", Value: bson.D{{Key: "participants", Value: entity.Participant{
			TelegramId: telegramId,
			TicketCode: code,
		}}}},
		{Key: "$inc", Value: bson.D{{Key: "total_tickets", Value: 1}}},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.D{{Key: "t.code", Value: code}}},
	})

	collection := connection.Database(m.database).Collection(collectionPots)
	result, err := collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("claim ticket: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}

	pot, err := m.PotById(ctx, potId)
	if err != nil {
		return err
	}
	return claimDenied(pot, telegramId, code)
}

// claimDenied names the reason a claim filter missed. Evaluation order
// mirrors the caller's expectations: state first, then per-user rule,
// then contention on the code itself.
func claimDenied(pot *entity.Pot, telegramId int64, code string) error {
	if !pot.IsOpen() {
		return entity.ErrPotNotOpen
	}
	if pot.HasParticipant(telegramId) {
		return entity.ErrAlreadyPurchased
	}
	if pot.IsFull() {
		return entity.ErrPotFull
	}
	for _, t := range pot.Tickets {
		if t.Code == code {
			return entity.ErrAlreadySold
		}
	}
	return fmt.Errorf("ticket code %s is not in pot %s", code, pot.Id)
}

// ClosePot transitions OPEN→CLOSED. On a no-op the observed status is
// mapped to AlreadyClosed/AlreadyRevealed so callers can treat it as
// idempotent success.
func (m *MongoDB) ClosePot(ctx context.Context, potId string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionPots)
	result, err := collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: potId}, {Key: "status", Value: entity.PotOpen}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: entity.PotClosed}}}},
	)
	if err != nil {
		return fmt.Errorf("close pot: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}
	pot, err := m.PotById(ctx, potId)
	if err != nil {
		return err
	}
	return entity.CloseDenied(pot.Status)
}

// RevealPot transitions CLOSED→REVEALED and writes the draw results in
// the same update, making the status field the idempotence marker for
// the whole reveal unit of work.
func (m *MongoDB) RevealPot(ctx context.Context, potId string, winners []entity.Winner, prizePool float64) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	if winners == nil {
		winners = []entity.Winner{}
	}
	collection := connection.Database(m.database).Collection(collectionPots)
	result, err := collection.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: potId}, {Key: "status", Value: entity.PotClosed}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.PotRevealed},
			{Key: "winners", Value: winners},
			{Key: "prize_pool", Value: prizePool},
		}}},
	)
	if err != nil {
		return fmt.Errorf("reveal pot: %w", err)
	}
	if result.ModifiedCount == 1 {
		return nil
	}
	pot, err := m.PotById(ctx, potId)
	if err != nil {
		return err
	}
	return entity.RevealDenied(pot.Status)
}

// -------- payouts --------

func (m *MongoDB) InsertPayout(ctx context.Context, record *entity.PayoutRecord) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionPayouts)
	_, err = collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return nil // reveal retry, record already written
	}
	return err
}

func (m *MongoDB) PayoutsByStatus(ctx context.Context, status entity.PayoutStatus) ([]*entity.PayoutRecord, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionPayouts)
	cursor, err := collection.Find(ctx, bson.D{{Key: "status", Value: status}})
	if err != nil {
		return nil, fmt.Errorf("find payouts: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*entity.PayoutRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SettlePayout moves PENDING→PAID/FAILED; terminal records are immutable.
func (m *MongoDB) SettlePayout(ctx context.Context, id string, status entity.PayoutStatus, at time.Time) (*entity.PayoutRecord, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	collection := connection.Database(m.database).Collection(collectionPayouts)
	var record entity.PayoutRecord
	err = collection.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "status", Value: entity.PayoutPending}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: status},
			{Key: "processed_at", Value: at},
		}}},
		opts,
	).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&record)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrPayoutNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("find payout: %w", err)
		}
		return nil, entity.ErrPayoutSettled
	}
	if err != nil {
		return nil, fmt.Errorf("settle payout: %w", err)
	}
	return &record, nil
}
