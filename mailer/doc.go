// Package mailer provides an SMTP-backed Notifier for delivering recovery
// codes. It is the reference delivery channel; callers with their own
// delivery pipeline can implement recovery.Notifier directly and skip this
// package entirely.
package mailer
