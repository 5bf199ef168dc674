package domain

// DefaultFormat is used for derived keys and rendering when a description has no format
const DefaultFormat = "jpg"

// Resize strategies
const (
	StrategyBounded = "bounded"
	StrategyFill    = "fill"
	StrategyStrict  = "strict"
)

// Stage identifies the step of a job that failed
type Stage string

const (
	StageDownload Stage = "download"
	StageRender   Stage = "render"
	StageUpload   Stage = "upload"
)

// DecodeStage identifies which decode attempt failed
type DecodeStage string

const (
	DecodeStageBase64     DecodeStage = "base64"
	DecodeStageBase64JSON DecodeStage = "base64-json"
)

// Decode failure policies
const (
	DecodePolicyFatal = "fatal"
	DecodePolicySkip  = "skip"
)
