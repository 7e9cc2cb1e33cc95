// Package handlers contains the HTTP handlers of the intake API.
package handlers
