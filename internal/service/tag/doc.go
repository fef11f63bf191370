// Package tag implements tag membership management: attaching, replacing,
// and detaching subscribers on a workspace's tags. The bulk sync engine
// never touches tag memberships itself; when replace-mode syncs are
// enabled, the API layer delegates here after reconciliation completes.
package tag
