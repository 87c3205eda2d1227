// Package roundregistry owns the lifecycle state the matching engine
// computes over: rounds and their draft/open/closed transitions, campaign
// applications and admin review, and contribution records that move from
// pending to confirmed through payment events. Closed rounds are immutable
// so historical distributions stay replayable.
package roundregistry
