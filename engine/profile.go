package engine

// Profile is the codec profile the engine is asked to decode.
type Profile string

const (
	ProfileH264Baseline = Profile("h264_baseline")
	ProfileH264Main     = Profile("h264_main")
	ProfileH264High     = Profile("h264_high")
	ProfileVP8          = Profile("vp8")
	ProfileVP9Profile0  = Profile("vp9_profile0")
	ProfileHEVCMain     = Profile("hevc_main")
)
