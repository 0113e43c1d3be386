// Package audio implements the chained podcast workers. After the content
// worker hands a podcast item off, a download task fetches the enclosure,
// a transcribe task runs it through WhisperX, and a summarize task closes
// the item out. The workers operate on the task queue alone and never take
// a content checkout.
package audio
