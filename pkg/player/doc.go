// ABOUTME: Playback engine package
// ABOUTME: Decodes audio files into a small buffer pool and streams them to an output device
// Package player plays audio files through an output device.
//
// A Player owns two serial queues. The decode queue fills free pool buffers
// from the file's decoder and publishes them; the playback queue writes
// published buffers to the device in order and recycles them. The session
// ends once the device reports that the final buffer has been heard, at
// which point the device and decoder are released and OnFinish runs.
//
// Example:
//
//	p, err := player.New(player.Config{OnFinish: func() { close(done) }})
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//	if err := p.Play("voice.opus"); err != nil {
//		return err
//	}
//	<-done
package player
