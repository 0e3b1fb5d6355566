package aurelia

// ================== Audio Output ==================

// Container represents the audio container of the synthesized output.
type Container string

const (
	ContainerRaw Container = "raw"
	ContainerWAV Container = "wav"
	ContainerMP3 Container = "mp3"
)

// Encoding represents the raw audio sample encoding.
type Encoding string

const (
	EncodingPCMF32LE Encoding = "pcm_f32le"
	EncodingPCMS16LE Encoding = "pcm_s16le"
	EncodingPCMMuLaw Encoding = "pcm_mulaw"
	EncodingPCMALaw  Encoding = "pcm_alaw"
)

// OutputFormat describes the requested audio output format.
//
// Raw and WAV containers require Encoding and SampleRate; MP3 requires
// SampleRate and BitRate.
type OutputFormat struct {
	Container  Container `json:"container" yaml:"container"`
	Encoding   Encoding  `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SampleRate int       `json:"sample_rate" yaml:"sample_rate"`
	BitRate    int       `json:"bit_rate,omitempty" yaml:"bit_rate,omitempty"`
}

// ================== Voice ==================

// VoiceMode selects how a voice is specified.
type VoiceMode string

const (
	VoiceModeID        VoiceMode = "id"
	VoiceModeEmbedding VoiceMode = "embedding"
)

// Voice specifies the voice to synthesize with, either by ID or by a raw
// embedding vector.
type Voice struct {
	Mode      VoiceMode `json:"mode" yaml:"mode"`
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Embedding []float64 `json:"embedding,omitempty" yaml:"embedding,omitempty"`

	// ExperimentalControls carries undocumented voice controls such as
	// speed and emotion. Forwarded verbatim.
	ExperimentalControls map[string]any `json:"__experimental_controls,omitempty" yaml:"experimental_controls,omitempty"`
}

// ================== Language ==================

// Language represents a supported language tag.
type Language string

const (
	LanguageEN Language = "en"
	LanguageDE Language = "de"
	LanguageES Language = "es"
	LanguageFR Language = "fr"
	LanguageJA Language = "ja"
	LanguageKO Language = "ko"
	LanguagePT Language = "pt"
	LanguageZH Language = "zh"
	LanguageHI Language = "hi"
	LanguageIT Language = "it"
	LanguageNL Language = "nl"
	LanguagePL Language = "pl"
	LanguageRU Language = "ru"
	LanguageSV Language = "sv"
	LanguageTR Language = "tr"
)

// ================== Timestamps ==================

// WordTimestamps holds word-level timing for synthesized audio. The three
// slices are parallel: Start[i] and End[i] are the offsets in seconds of
// Words[i].
type WordTimestamps struct {
	Words []string  `json:"words"`
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

// PhonemeTimestamps holds phoneme-level timing for synthesized audio, with
// the same parallel-slice layout as WordTimestamps.
type PhonemeTimestamps struct {
	Phonemes []string  `json:"phonemes"`
	Start    []float64 `json:"start"`
	End      []float64 `json:"end"`
}
