// Package whisper invokes WhisperX for podcast audio transcription.
//
// The service shells out to whisperx through uvx so no Python environment
// management lives in this repository. A custom command runner can be
// injected for tests. Transcript text is reassembled from the JSON segment
// output WhisperX writes next to the audio file.
package whisper
