// Package notify decides who hears about a task event and who may act on
// it, and fans messages out to a transport.
//
// The targeting functions are pure and total: any combination of IDs,
// including author == responsible == actor, yields a set and never fails.
// A responsible ID of 0 means none is assigned.
package notify

import (
	"sort"

	"tbot/pkg/task"
)

// IDSet is an unordered set of user IDs.
type IDSet map[int64]struct{}

// NewIDSet builds a set, ignoring zero IDs.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id unless it is zero.
func (s IDSet) Add(id int64) {
	if id != 0 {
		s[id] = struct{}{}
	}
}

// Remove deletes id.
func (s IDSet) Remove(id int64) { delete(s, id) }

// Has reports membership.
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members in ascending order.
func (s IDSet) Slice() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RecipientsOnTake is the author and the responsible, minus the actor.
// The same audience hears about pauses and completion requests.
func RecipientsOnTake(authorID, responsibleID, actorID int64) IDSet {
	s := NewIDSet()
	if authorID != actorID {
		s.Add(authorID)
	}
	if responsibleID != 0 && responsibleID != actorID {
		s.Add(responsibleID)
	}
	return s
}

// RecipientsOnConfirmation adds the confirmed participant to the take
// audience. The participant is always told, even when confirming themselves.
func RecipientsOnConfirmation(authorID, responsibleID, actorID, participantID int64) IDSet {
	s := RecipientsOnTake(authorID, responsibleID, actorID)
	s.Add(participantID)
	return s
}

// RecipientsOnCreate is the responsible and the workgroup, without the author.
func RecipientsOnCreate(t *task.Task) IDSet {
	s := NewIDSet(t.NonAuthorParticipants()...)
	s.Remove(t.AuthorID)
	return s
}

// RecipientsOnReopen is every participant except the actor.
func RecipientsOnReopen(t *task.Task, actorID int64) IDSet {
	s := NewIDSet(t.Participants()...)
	s.Remove(actorID)
	return s
}

// AllowedReminderTargets is empty unless the actor is author or responsible.
// Otherwise it is every participant but the actor; a responsible who is not
// the author cannot remind the author.
func AllowedReminderTargets(t *task.Task, actorID int64) IDSet {
	isAuthor := actorID == t.AuthorID
	isResponsible := t.ResponsibleID != 0 && actorID == t.ResponsibleID
	if !isAuthor && !isResponsible {
		return NewIDSet()
	}
	s := NewIDSet(t.Participants()...)
	s.Remove(actorID)
	if !isAuthor {
		s.Remove(t.AuthorID)
	}
	return s
}

// ShouldShowTakeButton is false only for an author who is also the sole
// responsible.
func ShouldShowTakeButton(authorID, responsibleID, userID int64) bool {
	if userID != authorID {
		return true
	}
	if responsibleID == 0 {
		return true
	}
	return authorID != responsibleID
}

// CanManage reports whether the user is the current executor, the
// responsible or the author.
func CanManage(t *task.Task, userID int64) bool {
	if userID == 0 {
		return false
	}
	return userID == t.ExecutorID || userID == t.ResponsibleID || userID == t.AuthorID
}
