// Package extraction implements the first pipeline stage: sampling every Nth
// frame of the source video into the run's frames directory.
//
// The video is probed with ffprobe before decoding so unreadable containers
// and audio-only files fail fast with services.ErrSourceUnreadable. Frames are
// written by ffmpeg as frame_0000.jpg, frame_0001.jpg, ... and listed back in
// numeric index order. Stale frames from a previous run of the same id are
// removed first.
package extraction
