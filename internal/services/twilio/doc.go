// Package twilio sends outbound SMS through the Twilio REST API and renders
// TwiML replies for inbound webhook messages.
package twilio
