package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". A nil error yields an empty Attr, which
// slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the emitting component under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Flag records a feature-flag name under "flag".
func Flag(name string) slog.Attr {
	return slog.String("flag", name)
}

// Route records a request route under "route".
func Route(route string) slog.Attr {
	return slog.String("route", route)
}

// DeploymentID records a deployment id under "deployment_id".
func DeploymentID(id string) slog.Attr {
	return slog.String("deployment_id", id)
}

// Version records a release version under "version".
func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Severity records an alert severity under "severity".
func Severity(s string) slog.Attr {
	return slog.String("severity", s)
}

// Path records a filesystem path under "path".
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Duration records d under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
