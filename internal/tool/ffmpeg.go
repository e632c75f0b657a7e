package tool

import "strings"

// DefaultFFmpegPath is used when config and flags name no transcoder.
const DefaultFFmpegPath = "ffmpeg"

// defaultEncoderOpts maps a target format to sane encoder arguments.
// Formats not listed get no options; the encoder picks its own defaults
// from the output extension.
var defaultEncoderOpts = map[string][]string{
	"mp3":  {"-codec:a", "libmp3lame", "-q:a", "2"},
	"ogg":  {"-codec:a", "libvorbis", "-q:a", "5"},
	"oga":  {"-codec:a", "libvorbis", "-q:a", "5"},
	"opus": {"-codec:a", "libopus", "-b:a", "160k"},
	"aac":  {"-codec:a", "libfdk_aac", "-vbr", "5"},
	"m4a":  {"-codec:a", "libfdk_aac", "-vbr", "5"},
	"mp4":  {"-codec:a", "libfdk_aac", "-vbr", "5"},
}

// DefaultEncoderOpts returns the stock encoder arguments for a target
// format, or nil when the format has none.
func DefaultEncoderOpts(format string) []string {
	opts, ok := defaultEncoderOpts[strings.ToLower(format)]
	if !ok {
		return nil
	}
	return append([]string(nil), opts...)
}

// SplitEncoderOpts splits a flag value like "-q:a 5 -ar 44100" into
// arguments. Splitting is on whitespace only; quoting is not supported.
func SplitEncoderOpts(s string) []string {
	return strings.Fields(s)
}

// FFmpeg transcodes media files by invoking an ffmpeg-compatible binary.
type FFmpeg struct {
	Path string
}

// NewFFmpeg returns an adapter for the given binary path, which may be a
// bare name resolved via PATH. Empty means DefaultFFmpegPath.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegPath
	}
	return &FFmpeg{Path: path}
}

// Probe reports whether the binary can be found.
func (f *FFmpeg) Probe() error {
	return probe(f.Path)
}

// Version returns the first line of `-version` output.
func (f *FFmpeg) Version() (string, error) {
	return version(f.Path, "-version")
}

// TranscodeArgs builds the argument list for one transcode. -y overwrites
// the temp output if a previous run left one behind, and -vn drops any
// embedded picture stream so the output is audio only.
func (f *FFmpeg) TranscodeArgs(src, dst string, encoderOpts []string) []string {
	args := []string{"-y", "-i", src, "-vn"}
	args = append(args, encoderOpts...)
	return append(args, dst)
}

// Transcode converts src into dst. The output format follows from dst's
// extension, so dst must carry the target extension even when it is a
// temp file.
func (f *FFmpeg) Transcode(src, dst string, encoderOpts []string) error {
	return run(f.Path, f.TranscodeArgs(src, dst, encoderOpts)...)
}
