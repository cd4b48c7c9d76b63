package proto

const (
	OpError   = 0
	OpTimeout = 1
	OpReply   = 2

	OpCreateRecordStream = 5
	OpDeleteRecordStream = 6

	OpAuth          = 8
	OpSetClientName = 9

	OpGetSinkInfo             = 21
	OpGetSinkInfoList         = 22
	OpGetSourceInfo           = 23
	OpGetSourceInfoList       = 24
	OpGetSinkInputInfo        = 29
	OpGetSinkInputInfoList    = 30
	OpGetSourceOutputInfo     = 31
	OpGetSourceOutputInfoList = 32
	OpSubscribe               = 35

	OpRecordStreamKilled = 65 // server -> client
	OpSubscribeEvent     = 66 // server -> client

	OpRecordStreamSuspended = 77 // server -> client
	OpRecordStreamMoved     = 79 // server -> client

	OpGetCardInfo     = 88
	OpGetCardInfoList = 89

	OpRecordStreamEvent       = 93 // server -> client
	OpRecordBufferAttrChanged = 95 // server -> client
)

type RequestArgs interface{ command() uint32 }
type Reply interface{ IsReplyTo() uint32 }

type CreateRecordStream struct {
	SampleSpec
	ChannelMap      ChannelMap
	SourceIndex     uint32
	SourceName      string
	BufferMaxLength uint32
	Corked          bool
	BufferFragSize  uint32

	NoRemap      bool "12"
	NoRemix      bool "12"
	FixFormat    bool "12"
	FixRate      bool "12"
	FixChannels  bool "12"
	NoMove       bool "12"
	VariableRate bool "12"

	PeakDetect         bool     "13"
	AdjustLatency      bool     "13"
	Properties         PropList "13"
	DirectOnInputIndex uint32   "13"

	EarlyRequests bool "14"

	DontInhibitAutoSuspend bool "15"
	FailOnSuspend          bool "15"

	Formats        []FormatInfo   "22"
	ChannelVolumes ChannelVolumes "22"
	Muted          bool           "22"
	VolumeSet      bool           "22"
	MutedSet       bool           "22"
	RelativeVolume bool           "22"
	Passthrough    bool           "22"
}
type CreateRecordStreamReply struct {
	StreamIndex       uint32
	SourceOutputIndex uint32

	BufferMaxLength uint32 "9"
	BufferFragSize  uint32 "9"

	SampleSpec      "12"
	ChannelMap      ChannelMap "12"
	SourceIndex     uint32     "12"
	SourceName      string     "12"
	SourceSuspended bool       "12"

	SourceLatency Microseconds "13"

	FormatInfo "22"
}

type DeleteRecordStream struct{ StreamIndex uint32 }

type Auth struct {
	Version Version
	Cookie  []byte
}
type AuthReply struct {
	Version Version
}

type SetClientName struct {
	Props PropList
}
type SetClientNameReply struct {
	ClientIndex uint32
}

type GetSinkInfo struct {
	SinkIndex uint32
	SinkName  string
}
type GetSinkInfoReply struct {
	SinkIndex uint32
	SinkName  string
	Device    string
	SampleSpec
	ChannelMap         ChannelMap
	ModuleIndex        uint32
	ChannelVolumes     ChannelVolumes
	Mute               bool
	MonitorSourceIndex uint32
	MonitorSourceName  string
	Latency            Microseconds
	Driver             string
	Flags              uint32

	Properties       PropList     "13"
	RequestedLatency Microseconds "13"

	BaseVolume     Volume "15"
	State          uint32 "15"
	NumVolumeSteps uint32 "15"
	CardIndex      uint32 "15"

	Ports []struct {
		Name        string
		Description string
		Priority    uint32
		Available   uint32 "24"
	} "16"
	ActivePortName string "16"

	Formats []FormatInfo "21"
}

type GetSourceInfo struct {
	SourceIndex uint32
	SourceName  string
}
type GetSourceInfoReply struct {
	SourceIndex uint32
	SourceName  string
	Device      string
	SampleSpec
	ChannelMap         ChannelMap
	ModuleIndex        uint32
	ChannelVolumes     ChannelVolumes
	Mute               bool
	MonitorSourceIndex uint32
	MonitorSourceName  string
	Latency            Microseconds
	Driver             string
	Flags              uint32

	Properties       PropList     "13"
	RequestedLatency Microseconds "13"

	BaseVolume     Volume "15"
	State          uint32 "15"
	NumVolumeSteps uint32 "15"
	CardIndex      uint32 "15"

	Ports []struct {
		Name        string
		Description string
		Priority    uint32
		Available   uint32 "24"
	} "16"
	ActivePortName string "16"

	Formats []FormatInfo "21"
}

type CardProfile struct {
	Name        string
	Description string
	NumSinks    uint32
	NumSources  uint32
	Priority    uint32
	Available   uint32 "29"
}

type GetCardInfo struct {
	CardIndex uint32
	CardName  string
}
type GetCardInfoReply struct {
	CardIndex   uint32
	CardName    string
	ModuleIndex uint32
	Driver      string

	Profiles          []CardProfile
	ActiveProfileName string
	Properties        PropList

	Ports []struct {
		Name        string
		Description string
		Priority    uint32
		Available   uint32
		Direction   byte
		Properties  PropList
		Profiles    []struct {
			Name string
		}
		LatencyOffset int64 "27"
	} "26"
}

type GetSinkInputInfo struct{ SinkInputIndex uint32 }
type GetSinkInputInfoReply struct {
	SinkInputIndex uint32
	MediaName      string
	ModuleIndex    uint32
	ClientIndex    uint32
	SinkIndex      uint32
	SampleSpec
	ChannelMap     ChannelMap
	ChannelVolumes ChannelVolumes

	SinkInputLatency Microseconds
	SinkLatency      Microseconds
	ResampleMethod   string
	Driver           string

	Muted bool "11"

	Properties PropList "13"

	Corked bool "19"

	VolumeReadable bool "20"
	VolumeWritable bool "20"

	FormatInfo "21"
}

type GetSourceOutputInfo struct{ SourceOutputIndex uint32 }
type GetSourceOutputInfoReply struct {
	SourceOutputIndex uint32
	MediaName         string
	ModuleIndex       uint32
	ClientIndex       uint32
	SourceIndex       uint32
	SampleSpec
	ChannelMap ChannelMap

	SourceOutputLatency Microseconds
	SourceLatency       Microseconds
	ResampleMethod      string
	Driver              string

	Properties PropList "13"

	Corked bool "19"

	ChannelVolumes ChannelVolumes "22"
	Muted          bool           "22"
	VolumeReadable bool           "22"
	VolumeWritable bool           "22"
	FormatInfo     "22"
}

type GetSinkInfoList struct{}
type GetSourceInfoList struct{}
type GetCardInfoList struct{}
type GetSinkInputInfoList struct{}
type GetSourceOutputInfoList struct{}

type GetSinkInfoListReply []*GetSinkInfoReply
type GetSourceInfoListReply []*GetSourceInfoReply
type GetCardInfoListReply []*GetCardInfoReply
type GetSinkInputInfoListReply []*GetSinkInputInfoReply
type GetSourceOutputInfoListReply []*GetSourceOutputInfoReply

type Subscribe struct{ Mask SubscriptionMask }

func (*CreateRecordStream) command() uint32      { return OpCreateRecordStream }
func (*DeleteRecordStream) command() uint32      { return OpDeleteRecordStream }
func (*Auth) command() uint32                    { return OpAuth }
func (*SetClientName) command() uint32           { return OpSetClientName }
func (*GetSinkInfo) command() uint32             { return OpGetSinkInfo }
func (*GetSinkInfoList) command() uint32         { return OpGetSinkInfoList }
func (*GetSourceInfo) command() uint32           { return OpGetSourceInfo }
func (*GetSourceInfoList) command() uint32       { return OpGetSourceInfoList }
func (*GetSinkInputInfo) command() uint32        { return OpGetSinkInputInfo }
func (*GetSinkInputInfoList) command() uint32    { return OpGetSinkInputInfoList }
func (*GetSourceOutputInfo) command() uint32     { return OpGetSourceOutputInfo }
func (*GetSourceOutputInfoList) command() uint32 { return OpGetSourceOutputInfoList }
func (*GetCardInfo) command() uint32             { return OpGetCardInfo }
func (*GetCardInfoList) command() uint32         { return OpGetCardInfoList }
func (*Subscribe) command() uint32               { return OpSubscribe }

func (*CreateRecordStreamReply) IsReplyTo() uint32      { return OpCreateRecordStream }
func (*AuthReply) IsReplyTo() uint32                    { return OpAuth }
func (*SetClientNameReply) IsReplyTo() uint32           { return OpSetClientName }
func (*GetSinkInfoReply) IsReplyTo() uint32             { return OpGetSinkInfo }
func (*GetSinkInfoListReply) IsReplyTo() uint32         { return OpGetSinkInfoList }
func (*GetSourceInfoReply) IsReplyTo() uint32           { return OpGetSourceInfo }
func (*GetSourceInfoListReply) IsReplyTo() uint32       { return OpGetSourceInfoList }
func (*GetSinkInputInfoReply) IsReplyTo() uint32        { return OpGetSinkInputInfo }
func (*GetSinkInputInfoListReply) IsReplyTo() uint32    { return OpGetSinkInputInfoList }
func (*GetSourceOutputInfoReply) IsReplyTo() uint32     { return OpGetSourceOutputInfo }
func (*GetSourceOutputInfoListReply) IsReplyTo() uint32 { return OpGetSourceOutputInfoList }
func (*GetCardInfoReply) IsReplyTo() uint32             { return OpGetCardInfo }
func (*GetCardInfoListReply) IsReplyTo() uint32         { return OpGetCardInfoList }

// Command returns the opcode of a request.
func Command(req RequestArgs) uint32 { return req.command() }

// SERVER -> CLIENT MESSAGES

type RecordStreamKilled struct{ StreamIndex uint32 }

type SubscribeEvent struct {
	Event SubscriptionEventType
	Index uint32
}

type RecordStreamSuspended struct {
	StreamIndex uint32
	Suspended   bool
}

type RecordStreamMoved struct {
	StreamIndex uint32
	DestIndex   uint32
	DestName    string
	Suspended   bool

	BufferMaxLength uint32       "13"
	BufferFragSize  uint32       "13"
	SourceLatency   Microseconds "13"
}

type RecordStreamEvent struct {
	StreamIndex uint32
	Event       string
	Properties  PropList
}

type RecordBufferAttrChanged struct {
	StreamIndex     uint32
	BufferMaxLength uint32
	BufferFragSize  uint32
	SourceLatency   Microseconds
}

// DataPacket carries audio for a record stream.
// A non-zero Offset is a relative seek; a forward seek leaves a hole of Offset bytes before Data.
type DataPacket struct {
	StreamIndex uint32
	Offset      int64
	Flags       uint32
	Data        []byte
}
