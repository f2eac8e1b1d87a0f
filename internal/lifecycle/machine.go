package lifecycle

import (
	"fmt"

	"marquee/internal/requests"
)

// Intent is a proposed notification. The machine never sends anything; it
// proposes intents and the notification dispatcher claims and delivers them.
type Intent struct {
	State requests.State
	Phone string
	Body  string
}

// Apply is the pure transition function: given a record snapshot and an
// event it returns the updated record and the notifications the transition
// calls for. An event that does not apply to the current state is a no-op
// returning the record unchanged and no intents, which makes the machine
// safe to feed duplicate or out-of-order polling results.
//
// Intents already covered by a persisted (state, phone) marker on the record
// are filtered out, so replaying an event never proposes a second send.
func Apply(rec requests.Request, event Event) (requests.Request, []Intent) {
	switch ev := event.(type) {
	case MetadataResolved:
		return applyMetadataResolved(rec, ev)
	case QueuedForDownload:
		return applyQueued(rec, ev)
	case ProgressObserved:
		return applyProgress(rec, ev)
	case DownloadCompleted:
		return applyCompleted(rec)
	case DownloadFailed:
		return applyFailed(rec, ev)
	case RetryRequested:
		return applyRetry(rec)
	default:
		return rec, nil
	}
}

func applyMetadataResolved(rec requests.Request, ev MetadataResolved) (requests.Request, []Intent) {
	switch rec.State {
	case requests.StatePendingLookup:
		rec.ReleaseDate = ev.ReleaseDate
		if ev.Released {
			return rec, nil
		}
		rec.State = requests.StateNotYetReleased
		return rec, notifications(rec, unreleasedMessage(rec))
	case requests.StateNotYetReleased:
		// Re-checked after the release date passed.
		rec.ReleaseDate = ev.ReleaseDate
		if ev.Released {
			rec.State = requests.StatePendingLookup
		}
		return rec, nil
	default:
		return rec, nil
	}
}

func applyQueued(rec requests.Request, ev QueuedForDownload) (requests.Request, []Intent) {
	if rec.State != requests.StatePendingLookup {
		return rec, nil
	}
	rec.State = requests.StateQueued
	rec.RadarrMovieID = ev.Ref
	return rec, notifications(rec, startedMessage(rec))
}

func applyProgress(rec requests.Request, ev ProgressObserved) (requests.Request, []Intent) {
	if rec.State != requests.StateQueued && rec.State != requests.StateDownloading {
		return rec, nil
	}
	rec.State = requests.StateDownloading
	rec.ProgressPercent = ev.Percent
	return rec, nil
}

func applyCompleted(rec requests.Request) (requests.Request, []Intent) {
	if rec.State != requests.StateQueued && rec.State != requests.StateDownloading {
		return rec, nil
	}
	rec.State = requests.StateCompleted
	rec.ProgressPercent = 100
	return rec, notifications(rec, readyMessage(rec))
}

func applyFailed(rec requests.Request, ev DownloadFailed) (requests.Request, []Intent) {
	if rec.State.IsTerminal() {
		return rec, nil
	}
	rec.State = requests.StateFailed
	rec.LastError = ev.Reason
	return rec, notifications(rec, failedMessage(rec))
}

func applyRetry(rec requests.Request) (requests.Request, []Intent) {
	if rec.State != requests.StateFailed {
		return rec, nil
	}
	rec.State = requests.StatePendingLookup
	rec.LastError = ""
	rec.ProgressPercent = 0
	// A pending record carries no download manager ref; the monitor assigns
	// a fresh one when it re-enqueues.
	rec.RadarrMovieID = 0
	return rec, nil
}

// notifications fans the message out to every requester that has not yet
// been notified for the record's new state.
func notifications(rec requests.Request, body string) []Intent {
	var intents []Intent
	for _, phone := range rec.Requesters {
		if rec.AlreadyNotified(rec.State, phone) {
			continue
		}
		intents = append(intents, Intent{State: rec.State, Phone: phone, Body: body})
	}
	return intents
}

func startedMessage(rec requests.Request) string {
	return fmt.Sprintf("Great! I'm getting %s ready for you. I'll text you when it's ready to watch!", rec.DisplayTitle())
}

func readyMessage(rec requests.Request) string {
	return fmt.Sprintf("%s is ready to watch! Enjoy your movie!", rec.DisplayTitle())
}

func failedMessage(rec requests.Request) string {
	reason := rec.LastError
	if reason == "" {
		reason = "Please try again later."
	}
	return fmt.Sprintf("Sorry, I couldn't get %s ready for you. %s", rec.DisplayTitle(), reason)
}

func unreleasedMessage(rec requests.Request) string {
	if rec.ReleaseDate != nil {
		return fmt.Sprintf("%s isn't released yet. It's expected on %s, and I'll start tracking it once it's out.",
			rec.DisplayTitle(), rec.ReleaseDate.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s isn't released yet. I'll start tracking it once it's out.", rec.DisplayTitle())
}
