// ABOUTME: Capture engine package
// ABOUTME: Records an input device to an encoded file through two serial queues
// Package recorder records audio from an input device to a file.
//
// The capture queue reads fixed-size buffers from the device and publishes
// them; the encode queue stages the bytes into codec-sized frames and hands
// them to the encoder, then posts each buffer back to the capture queue for
// reuse. Stop drains both queues before finalizing the file, so no captured
// audio is lost.
//
// Example:
//
//	r, err := recorder.New(recorder.Config{})
//	if err != nil {
//		return err
//	}
//	if err := r.Start("memo.opus"); err != nil {
//		return err
//	}
//	time.Sleep(5 * time.Second)
//	return r.Stop(context.Background())
package recorder
