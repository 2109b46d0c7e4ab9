package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/worktime/internal/core/session"
	mdb "github.com/ogurasousui/worktime/internal/platform/db/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collectionName  = "work_sessions"
	oneRunningIndex = "work_sessions_one_running_idx"
	naturalKeyIndex = "work_sessions_natural_key_idx"
)

type idleDocument struct {
	Reason         string     `bson:"reason,omitempty"`
	ApprovalStatus string     `bson:"approval_status"`
	ReviewedBy     string     `bson:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `bson:"reviewed_at,omitempty"`
	ReviewNote     string     `bson:"review_note,omitempty"`
}

type sessionDocument struct {
	ID              string        `bson:"_id"`
	EmployeeID      string        `bson:"employee_id"`
	Kind            string        `bson:"kind"`
	ProjectID       string        `bson:"project_id,omitempty"`
	StartTime       time.Time     `bson:"start_time"`
	EndTime         *time.Time    `bson:"end_time,omitempty"`
	DurationSeconds int64         `bson:"duration_seconds"`
	Status          string        `bson:"status"`
	Idle            *idleDocument `bson:"idle,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

// SessionRepository は MongoDB を利用したセッション永続化の実装です。
// 稼働中セッションの排他は status=running を条件にした部分一意インデックスで保証します。
type SessionRepository struct {
	sessions *mongo.Collection
}

// NewSessionRepository はインデックスを作成し SessionRepository を生成します。
func NewSessionRepository(ctx context.Context, db *mdb.Database) (*SessionRepository, error) {
	sessions := db.Collection(collectionName)

	if _, err := sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().
				SetName(oneRunningIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(session.StatusRunning)}),
		},
		{
			Keys:    bson.D{{Key: "employee_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().SetName(naturalKeyIndex).SetUnique(true),
		},
		{Keys: bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "start_time", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create work_sessions indexes: %w", err)
	}

	return &SessionRepository{sessions: sessions}, nil
}

// Insert は稼働中セッションを登録します。
func (r *SessionRepository) Insert(ctx context.Context, s *session.Session) (*session.Session, error) {
	doc := toDocument(s)
	if _, err := r.sessions.InsertOne(ctx, doc); err != nil {
		return nil, translateWriteError(err)
	}
	return doc.toSession(), nil
}

// FindRunning は従業員の指定種別の稼働中セッションを取得します。
func (r *SessionRepository) FindRunning(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	return r.findOne(ctx, bson.M{
		"employee_id": employeeID,
		"kind":        string(kind),
		"status":      string(session.StatusRunning),
	}, session.ErrNoRunningSession)
}

// FindLatestStopped は終了時刻が最も新しい停止済みセッションを取得します。
func (r *SessionRepository) FindLatestStopped(ctx context.Context, employeeID string, kind session.Kind) (*session.Session, error) {
	var doc sessionDocument
	err := r.sessions.FindOne(ctx,
		bson.M{
			"employee_id": employeeID,
			"kind":        string(kind),
			"status":      string(session.StatusStopped),
		},
		options.FindOne().SetSort(bson.D{{Key: "end_time", Value: -1}, {Key: "_id", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest work_session: %w", err)
	}
	return doc.toSession(), nil
}

// Close は稼働中のセッションを停止します。
func (r *SessionRepository) Close(ctx context.Context, id string, endTime time.Time, durationSeconds int64) (*session.Session, error) {
	end := endTime.UTC()
	closed, err := r.updateOne(ctx,
		bson.M{"_id": id, "status": string(session.StatusRunning), "start_time": bson.M{"$lte": end}},
		bson.M{"$set": bson.M{
			"end_time":         end,
			"duration_seconds": durationSeconds,
			"status":           string(session.StatusStopped),
			"updated_at":       end,
		}},
		session.ErrNoRunningSession,
	)
	if !errors.Is(err, session.ErrNoRunningSession) {
		return closed, err
	}

	// 稼働中だが終了時刻が開始より前だった場合を区別する
	if running, findErr := r.findOne(ctx, bson.M{"_id": id, "status": string(session.StatusRunning)}, session.ErrNoRunningSession); findErr == nil && running.StartTime.After(end) {
		return nil, session.ErrInvalidInterval
	}
	return nil, err
}

// FindByID は ID でセッションを取得します。
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*session.Session, error) {
	return r.findOne(ctx, bson.M{"_id": id}, session.ErrSessionNotFound)
}

// UpdateIdleReason は本人の承認待ちアイドルセッションの理由を更新します。
func (r *SessionRepository) UpdateIdleReason(ctx context.Context, id, employeeID, reason string, updatedAt time.Time) (*session.Session, error) {
	return r.updateOne(ctx,
		bson.M{
			"_id":                  id,
			"employee_id":          employeeID,
			"kind":                 string(session.KindIdle),
			"idle.approval_status": string(session.ApprovalPending),
		},
		bson.M{"$set": bson.M{"idle.reason": reason, "updated_at": updatedAt.UTC()}},
		session.ErrReasonFrozen,
	)
}

// ApplyReview は停止済みかつ承認待ちのアイドルセッションにレビュー結果を記録します。
func (r *SessionRepository) ApplyReview(ctx context.Context, id string, review session.Review) (*session.Session, error) {
	reviewedAt := review.ReviewedAt.UTC()
	return r.updateOne(ctx,
		bson.M{
			"_id":                  id,
			"kind":                 string(session.KindIdle),
			"status":               string(session.StatusStopped),
			"idle.approval_status": string(session.ApprovalPending),
		},
		bson.M{"$set": bson.M{
			"idle.approval_status": string(review.Status),
			"idle.reviewed_by":     review.ReviewedBy,
			"idle.reviewed_at":     reviewedAt,
			"idle.review_note":     review.Note,
			"updated_at":           reviewedAt,
		}},
		session.ErrNotReviewable,
	)
}

// List はフィルタに一致するセッションを開始時刻の昇順で取得します。
func (r *SessionRepository) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	if filter.Limit < 0 {
		return nil, session.ErrInvalidPageSize
	}
	if filter.Offset < 0 {
		return nil, session.ErrInvalidPageToken
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.sessions.Find(ctx, listQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find work_sessions: %w", err)
	}

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode work_sessions: %w", err)
	}

	sessions := make([]*session.Session, 0, len(docs))
	for i := range docs {
		sessions = append(sessions, docs[i].toSession())
	}
	return sessions, nil
}

// Import は取り込んだセッションを登録します。(employee_id, kind, start_time) が既存なら false を返します。
// 重複キーエラーはトランザクションを中断させるため、自然キーの存在を先に確認します。
func (r *SessionRepository) Import(ctx context.Context, s *session.Session) (bool, error) {
	count, err := r.sessions.CountDocuments(ctx, bson.M{
		"employee_id": s.EmployeeID,
		"kind":        string(s.Kind),
		"start_time":  s.StartTime.UTC(),
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count work_sessions: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, err := r.sessions.InsertOne(ctx, toDocument(s)); err != nil {
		return false, translateWriteError(err)
	}
	return true, nil
}

func (r *SessionRepository) findOne(ctx context.Context, filter bson.M, notFound error) (*session.Session, error) {
	var doc sessionDocument
	err := r.sessions.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("find work_session: %w", err)
	}
	return doc.toSession(), nil
}

func (r *SessionRepository) updateOne(ctx context.Context, filter, update bson.M, noMatch error) (*session.Session, error) {
	var doc sessionDocument
	err := r.sessions.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, noMatch
	}
	if err != nil {
		return nil, translateWriteError(err)
	}
	return doc.toSession(), nil
}

func listQuery(filter session.ListFilter) bson.M {
	query := bson.M{}
	if filter.EmployeeID != "" {
		query["employee_id"] = filter.EmployeeID
	}
	if filter.ProjectID != "" {
		query["project_id"] = filter.ProjectID
	}
	if filter.Kind != nil {
		query["kind"] = string(*filter.Kind)
	}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}

	start := bson.M{}
	if filter.StartFrom != nil {
		start["$gte"] = filter.StartFrom.UTC()
	}
	if filter.StartTo != nil {
		start["$lt"] = filter.StartTo.UTC()
	}
	if len(start) > 0 {
		query["start_time"] = start
	}
	return query
}

func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), oneRunningIndex) {
			return session.ErrAlreadyRunning
		}
		return session.ErrDuplicateSession
	}
	return fmt.Errorf("write work_session: %w", err)
}

func toDocument(s *session.Session) *sessionDocument {
	doc := &sessionDocument{
		ID:              s.ID,
		EmployeeID:      s.EmployeeID,
		Kind:            string(s.Kind),
		ProjectID:       s.ProjectID,
		StartTime:       s.StartTime.UTC(),
		EndTime:         utcPtr(s.EndTime),
		DurationSeconds: s.DurationSeconds,
		Status:          string(s.Status),
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
	if s.Idle != nil {
		doc.Idle = &idleDocument{
			Reason:         s.Idle.Reason,
			ApprovalStatus: string(s.Idle.ApprovalStatus),
			ReviewedBy:     s.Idle.ReviewedBy,
			ReviewedAt:     utcPtr(s.Idle.ReviewedAt),
			ReviewNote:     s.Idle.ReviewNote,
		}
	}
	return doc
}

func (d *sessionDocument) toSession() *session.Session {
	s := &session.Session{
		ID:              d.ID,
		EmployeeID:      d.EmployeeID,
		Kind:            session.Kind(d.Kind),
		ProjectID:       d.ProjectID,
		StartTime:       d.StartTime.UTC(),
		EndTime:         utcPtr(d.EndTime),
		DurationSeconds: d.DurationSeconds,
		Status:          session.Status(d.Status),
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.Idle != nil {
		s.Idle = &session.IdleReview{
			Reason:         d.Idle.Reason,
			ApprovalStatus: session.ApprovalStatus(d.Idle.ApprovalStatus),
			ReviewedBy:     d.Idle.ReviewedBy,
			ReviewedAt:     utcPtr(d.Idle.ReviewedAt),
			ReviewNote:     d.Idle.ReviewNote,
		}
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
