package testsupport

// Shell bodies for the external tools a run invokes. They honor the argument
// conventions of the real tools closely enough for the pipeline to complete.
const (
	// StubFFprobe reports one 100-frame video stream.
	StubFFprobe = `echo '{"streams":[{"index":0,"codec_type":"video","avg_frame_rate":"10/1","nb_frames":"100"}],"format":{"duration":"10.0","nb_streams":1}}'
`

	// StubFFmpeg writes ten empty frames next to its last argument.
	StubFFmpeg = `for a; do last="$a"; done
dir=$(dirname "$last")
i=0
while [ $i -lt 10 ]; do
  : > "$dir/$(printf 'frame_%04d.jpg' $i)"
  i=$((i+1))
done
`

	stubFrameArgs = `while [ $# -gt 0 ]; do
  case "$1" in
    --frames-dir) dir="$2"; shift ;;
  esac
  shift
done
`

	// StubScorer scores every frame 0.31234.
	StubScorer = stubFrameArgs + `printf '['
sep=''
for f in "$dir"/frame_*.jpg; do
  printf '%s{"frame":"%s","score":0.31234}' "$sep" "$(basename "$f")"
  sep=','
done
printf ']\n'
`

	// StubDetector reports "cat" and "Cat" in every frame.
	StubDetector = stubFrameArgs + `printf '['
sep=''
for f in "$dir"/frame_*.jpg; do
  printf '%s{"frame":"%s","objects":["cat","Cat"]}' "$sep" "$(basename "$f")"
  sep=','
done
printf ']\n'
`
)

// WithPipelineStubs installs working stubs for every external tool under the
// configured command names.
func WithPipelineStubs() ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, b.binDir(), b.cfg.Extraction.FFprobeBinary, StubFFprobe)
		WriteScript(b.t, b.binDir(), b.cfg.Extraction.FFmpegBinary, StubFFmpeg)
		WriteScript(b.t, b.binDir(), b.cfg.Scorer.Command, StubScorer)
		WriteScript(b.t, b.binDir(), b.cfg.Detector.Command, StubDetector)
		b.prependPath()
	}
}
