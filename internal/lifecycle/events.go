package lifecycle

import "time"

// Event is one observed fact about a request, produced by the agent or by
// the reconciliation monitor from download-manager status. Events carry no
// behavior; Apply decides what each one means for the current state.
type Event interface {
	eventName() string
}

// MetadataResolved reports the outcome of a metadata lookup for the title.
type MetadataResolved struct {
	Released    bool
	ReleaseDate *time.Time
}

// QueuedForDownload reports that the download manager accepted the movie and
// returned its handle.
type QueuedForDownload struct {
	Ref int64
}

// ProgressObserved reports partial download progress.
type ProgressObserved struct {
	Percent float64
}

// DownloadCompleted reports the download manager finished the movie.
type DownloadCompleted struct{}

// DownloadFailed reports a permanent download failure.
type DownloadFailed struct {
	Reason string
}

// RetryRequested moves a failed request back to the start of the lifecycle.
type RetryRequested struct{}

func (MetadataResolved) eventName() string  { return "metadata_resolved" }
func (QueuedForDownload) eventName() string { return "queued_for_download" }
func (ProgressObserved) eventName() string  { return "progress_observed" }
func (DownloadCompleted) eventName() string { return "download_completed" }
func (DownloadFailed) eventName() string    { return "download_failed" }
func (RetryRequested) eventName() string    { return "retry_requested" }
