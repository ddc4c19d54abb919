package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles every d_callstream_* table the Persister and Media
// Router need. It is a thin wrapper over GORM, following the teacher's
// one-repository-per-concern pattern but consolidated into a single type
// since every table here belongs to the same Persister write path.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository over an open connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertKeepAlive inserts or refreshes a log server's heartbeat row, keyed
// by log_server_no.
func (r *Repository) UpsertKeepAlive(ka *KeepAlive) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "log_server_no"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_heartbeat", "timeout", "sw_ver", "sw_ver_string", "log_server_descr"}),
	}).Create(ka).Error
}

// CreateIndiCall inserts the opening row for a new individual call and
// populates db_id via the primary key.
func (r *Repository) CreateIndiCall(c *IndiCall) error {
	return r.db.Create(c).Error
}

// CloseIndiCall records call_end, the final sequence number, and the
// disconnect cause on an in-progress individual call.
func (r *Repository) CloseIndiCall(dbID uint64, callEnd time.Time, seqNoEnd uint16, cause uint8) error {
	return r.db.Model(&IndiCall{}).Where("db_id = ?", dbID).Updates(map[string]interface{}{
		"call_end":         callEnd,
		"seq_no_end":       seqNoEnd,
		"disconnect_cause": cause,
	}).Error
}

// InsertIndiCallStatusChange appends one status-change log row.
func (r *Repository) InsertIndiCallStatusChange(row *IndiCallStatusChange) error {
	return r.db.Create(row).Error
}

// InsertIndiCallPtt appends one PTT floor-change log row.
func (r *Repository) InsertIndiCallPtt(row *IndiCallPtt) error {
	return r.db.Create(row).Error
}

// CreateGroupCall inserts the opening row for a new group call.
func (r *Repository) CreateGroupCall(c *GroupCall) error {
	return r.db.Create(c).Error
}

// CloseGroupCall is CloseIndiCall's group-call counterpart.
func (r *Repository) CloseGroupCall(dbID uint64, callEnd time.Time, seqNoEnd uint16, cause uint8) error {
	return r.db.Model(&GroupCall{}).Where("db_id = ?", dbID).Updates(map[string]interface{}{
		"call_end":         callEnd,
		"seq_no_end":       seqNoEnd,
		"disconnect_cause": cause,
	}).Error
}

// InsertGroupCallStatusChange appends one status-change log row.
func (r *Repository) InsertGroupCallStatusChange(row *GroupCallStatusChange) error {
	return r.db.Create(row).Error
}

// InsertGroupCallPtt appends one PTT floor-change log row.
func (r *Repository) InsertGroupCallPtt(row *GroupCallPtt) error {
	return r.db.Create(row).Error
}

// CreateVoiceIndiCall attaches the assembled voice recording to an
// individual call's db_id.
func (r *Repository) CreateVoiceIndiCall(v *VoiceIndiCall) error {
	return r.db.Create(v).Error
}

// CreateVoiceGroupCall attaches the assembled voice recording to a group
// call's db_id.
func (r *Repository) CreateVoiceGroupCall(v *VoiceGroupCall) error {
	return r.db.Create(v).Error
}

// InsertSDSStatus logs one precoded status short data message.
func (r *Repository) InsertSDSStatus(row *SDSStatus) error {
	return r.db.Create(row).Error
}

// InsertSDSData logs one free-text short data message.
func (r *Repository) InsertSDSData(row *SDSData) error {
	return r.db.Create(row).Error
}

// GetIndiCallByDbID retrieves one individual call row by primary key, for
// the Media Router's playback lookups.
func (r *Repository) GetIndiCallByDbID(dbID uint64) (*IndiCall, error) {
	var c IndiCall
	if err := r.db.Where("db_id = ?", dbID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetGroupCallByDbID mirrors GetIndiCallByDbID for group calls.
func (r *Repository) GetGroupCallByDbID(dbID uint64) (*GroupCall, error) {
	var c GroupCall
	if err := r.db.Where("db_id = ?", dbID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetVoiceIndiCall retrieves the voice blob attached to an individual
// call's db_id.
func (r *Repository) GetVoiceIndiCall(dbID uint64) (*VoiceIndiCall, error) {
	var v VoiceIndiCall
	if err := r.db.Where("db_id = ?", dbID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVoiceGroupCall retrieves the voice blob attached to a group call's
// db_id.
func (r *Repository) GetVoiceGroupCall(dbID uint64) (*VoiceGroupCall, error) {
	var v VoiceGroupCall
	if err := r.db.Where("db_id = ?", dbID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// RecentIndiCalls lists the most recently begun individual calls, for
// GET_CALL_HISTORY.
func (r *Repository) RecentIndiCalls(limit int) ([]IndiCall, error) {
	var calls []IndiCall
	err := r.db.Order("call_begin DESC").Limit(limit).Find(&calls).Error
	return calls, err
}

// RecentGroupCalls mirrors RecentIndiCalls for group calls.
func (r *Repository) RecentGroupCalls(limit int) ([]GroupCall, error) {
	var calls []GroupCall
	err := r.db.Order("call_begin DESC").Limit(limit).Find(&calls).Error
	return calls, err
}
