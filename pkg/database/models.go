package database

import "time"

// KeepAlive is the upsert target for a log server's liveness heartbeat,
// keyed by log_server_no.
type KeepAlive struct {
	LogServerNo    uint32    `gorm:"primarykey;column:log_server_no" json:"log_server_no"`
	LastHeartbeat  time.Time `gorm:"column:last_heartbeat" json:"last_heartbeat"`
	Timeout        uint32    `gorm:"column:timeout" json:"timeout"`
	SwVer          uint32    `gorm:"column:sw_ver" json:"sw_ver"`
	SwVerString    string    `gorm:"column:sw_ver_string;size:32" json:"sw_ver_string"`
	LogServerDescr string    `gorm:"column:log_server_descr;size:64" json:"log_server_descr"`
}

func (KeepAlive) TableName() string { return "d_callstream_keepalive" }

// IndiCall is one individual (duplex or simplex) call's lifecycle row.
// SimplexDuplex is 0 for duplex, 1 for simplex, matching the wire action's
// call family rather than a boolean column per component.
type IndiCall struct {
	DbID            uint64    `gorm:"primarykey;column:db_id" json:"db_id"`
	CallID          uint32    `gorm:"column:call_id;index" json:"call_id"`
	Timeout         uint32    `gorm:"column:timeout" json:"timeout"`
	CallBegin       time.Time `gorm:"column:call_begin" json:"call_begin"`
	CallEnd         time.Time `gorm:"column:call_end" json:"call_end"`
	SeqNoBegin      uint16    `gorm:"column:seq_no_begin" json:"seq_no_begin"`
	SeqNoEnd        uint16    `gorm:"column:seq_no_end" json:"seq_no_end"`
	CallingSSI      uint32    `gorm:"column:calling_ssi" json:"calling_ssi"`
	CallingMNC      uint16    `gorm:"column:calling_mnc" json:"calling_mnc"`
	CallingMCC      uint16    `gorm:"column:calling_mcc" json:"calling_mcc"`
	CallingESN      string    `gorm:"column:calling_esn;size:16" json:"calling_esn"`
	CallingDescr    string    `gorm:"column:calling_descr;size:32" json:"calling_descr"`
	CalledSSI       uint32    `gorm:"column:called_ssi" json:"called_ssi"`
	CalledMNC       uint16    `gorm:"column:called_mnc" json:"called_mnc"`
	CalledMCC       uint16    `gorm:"column:called_mcc" json:"called_mcc"`
	CalledESN       string    `gorm:"column:called_esn;size:16" json:"called_esn"`
	CalledDescr     string    `gorm:"column:called_descr;size:32" json:"called_descr"`
	SimplexDuplex   uint8     `gorm:"column:simplex_duplex" json:"simplex_duplex"`
	DisconnectCause uint8     `gorm:"column:disconnect_cause" json:"disconnect_cause"`
}

func (IndiCall) TableName() string { return "d_callstream_indicall" }

// IndiCallStatusChange logs every *CallChange/keepalive record seen for an
// individual call, in arrival order.
type IndiCallStatusChange struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	CallID     uint32    `gorm:"column:call_id;index" json:"call_id"`
	SeqNo      uint16    `gorm:"column:seq_no" json:"seq_no"`
	ReceivedAt time.Time `gorm:"column:received_at" json:"received_at"`
	ActionID   uint8     `gorm:"column:action_id" json:"action_id"`
	Timeout    uint32    `gorm:"column:timeout" json:"timeout"`
}

func (IndiCallStatusChange) TableName() string { return "d_callstream_indicall_status_change" }

// IndiCallPtt logs every PTT floor change on an individual simplex call.
type IndiCallPtt struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	CallID       uint32    `gorm:"column:call_id;index" json:"call_id"`
	SeqNo        uint16    `gorm:"column:seq_no" json:"seq_no"`
	ReceivedAt   time.Time `gorm:"column:received_at" json:"received_at"`
	TalkingParty uint8     `gorm:"column:talking_party" json:"talking_party"`
}

func (IndiCallPtt) TableName() string { return "d_callstream_indicall_ptt" }

// GroupCall is the group-call analog of IndiCall: one group party rather
// than a calling/called pair.
type GroupCall struct {
	DbID            uint64    `gorm:"primarykey;column:db_id" json:"db_id"`
	CallID          uint32    `gorm:"column:call_id;index" json:"call_id"`
	Timeout         uint32    `gorm:"column:timeout" json:"timeout"`
	CallBegin       time.Time `gorm:"column:call_begin" json:"call_begin"`
	CallEnd         time.Time `gorm:"column:call_end" json:"call_end"`
	SeqNoBegin      uint16    `gorm:"column:seq_no_begin" json:"seq_no_begin"`
	SeqNoEnd        uint16    `gorm:"column:seq_no_end" json:"seq_no_end"`
	GroupSSI        uint32    `gorm:"column:group_ssi" json:"group_ssi"`
	GroupMNC        uint16    `gorm:"column:group_mnc" json:"group_mnc"`
	GroupMCC        uint16    `gorm:"column:group_mcc" json:"group_mcc"`
	GroupESN        string    `gorm:"column:group_esn;size:16" json:"group_esn"`
	GroupDescr      string    `gorm:"column:group_descr;size:32" json:"group_descr"`
	DisconnectCause uint8     `gorm:"column:disconnect_cause" json:"disconnect_cause"`
}

func (GroupCall) TableName() string { return "d_callstream_groupcall" }

// GroupCallStatusChange mirrors IndiCallStatusChange for group calls.
type GroupCallStatusChange struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	CallID     uint32    `gorm:"column:call_id;index" json:"call_id"`
	SeqNo      uint16    `gorm:"column:seq_no" json:"seq_no"`
	ReceivedAt time.Time `gorm:"column:received_at" json:"received_at"`
	ActionID   uint8     `gorm:"column:action_id" json:"action_id"`
	Timeout    uint32    `gorm:"column:timeout" json:"timeout"`
}

func (GroupCallStatusChange) TableName() string { return "d_callstream_groupcall_status_change" }

// GroupCallPtt mirrors IndiCallPtt for group calls; talking_party here is
// the SSI of the party holding the floor, not an A/B enum.
type GroupCallPtt struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	CallID       uint32    `gorm:"column:call_id;index" json:"call_id"`
	SeqNo        uint16    `gorm:"column:seq_no" json:"seq_no"`
	ReceivedAt   time.Time `gorm:"column:received_at" json:"received_at"`
	TalkingParty uint32    `gorm:"column:talking_party" json:"talking_party"`
}

func (GroupCallPtt) TableName() string { return "d_callstream_groupcall_ptt" }

// VoiceIndiCall holds the assembled voice recording for one IndiCall, keyed
// by its db_id. VoiceData is either (WAV header ∥ interleaved samples) or,
// in MP3 mode, the encoder's output file contents.
type VoiceIndiCall struct {
	DbID         uint64        `gorm:"primarykey;column:db_id" json:"db_id"`
	CallBegin    time.Time     `gorm:"column:call_begin" json:"call_begin"`
	CallEnd      time.Time     `gorm:"column:call_end" json:"call_end"`
	VoiceDataLen int64         `gorm:"column:voice_data_len" json:"voice_data_len"`
	VoiceData    []byte        `gorm:"column:voice_data" json:"voice_data"`
	Duration     Interval      `gorm:"column:duration;type:interval" json:"duration"`
}

func (VoiceIndiCall) TableName() string { return "d_callstream_voiceindicall" }

// VoiceGroupCall is VoiceIndiCall's group-call counterpart.
type VoiceGroupCall struct {
	DbID         uint64        `gorm:"primarykey;column:db_id" json:"db_id"`
	CallBegin    time.Time     `gorm:"column:call_begin" json:"call_begin"`
	CallEnd      time.Time     `gorm:"column:call_end" json:"call_end"`
	VoiceDataLen int64         `gorm:"column:voice_data_len" json:"voice_data_len"`
	VoiceData    []byte        `gorm:"column:voice_data" json:"voice_data"`
	Duration     Interval      `gorm:"column:duration;type:interval" json:"duration"`
}

func (VoiceGroupCall) TableName() string { return "d_callstream_voicegroupcall" }

// SDSStatus records one precoded status short data message.
type SDSStatus struct {
	ID                  uint64    `gorm:"primarykey" json:"id"`
	ReceivedAt          time.Time `gorm:"column:received_at" json:"received_at"`
	CallingSSI          uint32    `gorm:"column:calling_ssi" json:"calling_ssi"`
	CallingMNC          uint16    `gorm:"column:calling_mnc" json:"calling_mnc"`
	CallingMCC          uint16    `gorm:"column:calling_mcc" json:"calling_mcc"`
	CalledSSI           uint32    `gorm:"column:called_ssi" json:"called_ssi"`
	CalledMNC           uint16    `gorm:"column:called_mnc" json:"called_mnc"`
	CalledMCC           uint16    `gorm:"column:called_mcc" json:"called_mcc"`
	PrecodedStatusValue uint32    `gorm:"column:precoded_status_value" json:"precoded_status_value"`
}

func (SDSStatus) TableName() string { return "d_callstream_sdsstatus" }

// SDSData records one free-text short data message.
type SDSData struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	ReceivedAt     time.Time `gorm:"column:received_at" json:"received_at"`
	CallingSSI     uint32    `gorm:"column:calling_ssi" json:"calling_ssi"`
	CallingMNC     uint16    `gorm:"column:calling_mnc" json:"calling_mnc"`
	CallingMCC     uint16    `gorm:"column:calling_mcc" json:"calling_mcc"`
	CalledSSI      uint32    `gorm:"column:called_ssi" json:"called_ssi"`
	CalledMNC      uint16    `gorm:"column:called_mnc" json:"called_mnc"`
	CalledMCC      uint16    `gorm:"column:called_mcc" json:"called_mcc"`
	UserDataLength uint32    `gorm:"column:user_data_length" json:"user_data_length"`
	UserData       string    `gorm:"column:user_data;size:140" json:"user_data"`
}

func (SDSData) TableName() string { return "d_callstream_sdsdata" }
