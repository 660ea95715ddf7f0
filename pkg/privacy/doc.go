// Package privacy defines the consent collaborator consumed by the ingestion
// pipeline and implements delete-by-identity erasure across both storage
// collaborators.
//
// Consent gates which event types may be recorded for a session; erasure
// purges every trace of a visitor (columnar rows and key-value documents)
// when a deletion request arrives from the externally owned GDPR workflow.
package privacy
