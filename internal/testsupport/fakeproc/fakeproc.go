// Package fakeproc writes stand-in fetch and transcode tools for tests so the
// real pipeline code runs against predictable subprocesses.
package fakeproc

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Audio is the payload written by the default fetch script.
const Audio = "RIFF-FAKE-AUDIO-PAYLOAD"

// InfoJSON is the record printed by the default fetch script in --dump-json mode.
const InfoJSON = `{"title":"My Song / Live: 2024?","thumbnail":"https://i.ytimg.com/vi/abc/maxresdefault.jpg","duration":212.5,"channel":"Some Channel","uploader":"someone","view_count":1234}`

const dumpInfo = `for a in "$@"; do
  if [ "$a" = "--dump-json" ]; then
    printf '%s\n' '` + InfoJSON + `'
    exit 0
  fi
done
`

// FetchOK dumps metadata on --dump-json, otherwise reports 42.5% then 100%
// and writes Audio to stdout.
const FetchOK = dumpInfo + `printf '[download]  42.5%% of ~3.00MiB at 1.00MiB/s ETA 00:02\n' >&2
printf '` + Audio + `'
printf '[download] 100%% of ~3.00MiB at 1.00MiB/s ETA 00:00\n' >&2
exit 0
`

// FetchHang dumps metadata on --dump-json, otherwise never finishes.
const FetchHang = dumpInfo + `exec sleep 30
`

// FetchUnavailable answers metadata requests but fails the download.
const FetchUnavailable = dumpInfo + `echo "ERROR: [youtube] abc: Video unavailable" >&2
exit 1
`

// FetchPrivate fails the way the fetch tool does for an unavailable video.
const FetchPrivate = `echo "ERROR: [youtube] abc: private video" >&2
exit 1
`

// FetchGarbage prints something that is not a metadata record.
const FetchGarbage = `echo "not json at all"
exit 0
`

// TranscodeCat copies stdin to stdout unchanged.
const TranscodeCat = `exec cat
`

// TranscodeStrict copies stdin to stdout but, like the real transcoder, fails
// when the input is empty.
const TranscodeStrict = `data=$(cat)
if [ -z "$data" ]; then
  echo "pipe:0: Invalid data found when processing input" >&2
  exit 1
fi
printf '%s' "$data"
`

// FetchThenFail writes Audio, closes its stdout and exits 1 a moment later.
const FetchThenFail = `printf '` + Audio + `'
exec 1>&-
sleep 0.3
echo "ERROR: postprocessing failed" >&2
exit 1
`

// TranscodeFail drains its input and exits non-zero.
const TranscodeFail = `cat >/dev/null
echo "Invalid data found when processing input" >&2
exit 1
`

// Sleepy returns script prefixed with a delay so callers can observe the
// initial job state.
func Sleepy(seconds string, script string) string {
	return "sleep " + seconds + "\n" + script
}

// Write creates an executable shell script named name in dir.
func Write(t testing.TB, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools are not supported on windows")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// Tools writes a fetch and a transcode script into a fresh temp dir.
func Tools(t testing.TB, fetch, transcode string) (fetchPath, transcodePath string) {
	t.Helper()
	dir := t.TempDir()
	return Write(t, dir, "yt-dlp", fetch), Write(t, dir, "ffmpeg", transcode)
}
