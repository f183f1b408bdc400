package cli

import (
	"github.com/avalon/sftpc/internal/events"
	"github.com/avalon/sftpc/internal/logging"
)

// logBusEvents renders the subset of bus events a CLI run cares about
// through the logger, decoupling the controller/aggregator from any
// particular UI the way the event bus is meant to. It returns once stream is
// closed or stop is signaled, whichever happens first; stop lets the caller
// retire this consumer after unsubscribing, without depending on the bus
// itself closing the channel.
func logBusEvents(log *logging.Logger, stream <-chan events.Event, stop <-chan struct{}) {
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return
			}
			logOneEvent(log, ev)
		case <-stop:
			return
		}
	}
}

func logOneEvent(log *logging.Logger, ev events.Event) {
	switch ev.Type() {
	case events.EventPackageCanceling:
		log.Info().Msg("cancelling: draining in-flight transfers")
	case events.EventPackageCanceled:
		log.Info().Msg("cancelled")
	case events.EventJobFailed:
		if je, ok := ev.(*events.JobEvent); ok {
			log.Warn().Str("job", je.JobID).Err(je.Err).Msg("job failed")
		}
	case events.EventLog:
		if le, ok := ev.(*events.LogEvent); ok {
			logAtLevel(log, le.Level, le.Message, le.Err)
		}
	}
}

func logAtLevel(log *logging.Logger, level events.LogLevel, msg string, err error) {
	switch level {
	case events.DebugLevel:
		log.Debug().Err(err).Msg(msg)
	case events.WarnLevel:
		log.Warn().Err(err).Msg(msg)
	case events.ErrorLevel:
		log.Error().Err(err).Msg(msg)
	default:
		log.Info().Err(err).Msg(msg)
	}
}
