package types

import (
	"fmt"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
)

const (
	EventRewardPollType   = "reward_poll_created"
	EventRulePollType     = "reward_rule_poll_created"
	EventWithdrawPollType = "withdraw_poll_created"
	EventVoteType         = "poll_voted"
	EventRevokeVoteType   = "poll_vote_revoked"
	EventFinalizePollType = "poll_finalized"
	EventRoleType         = "role_changed"
	EventOwnershipType    = "ownership_transferred"
	EventRelayType        = "relay_result"
	EventDepositType      = "deposit"
	EventWithdrawnType    = "withdrawn"
	EventPollDurationType = "poll_duration_changed"
)

const (
	RoleManager = "manager"
	RoleMember  = "member"

	PollKindNameReward     = "reward"
	PollKindNameRewardRule = "reward_rule"
	PollKindNameWithdraw   = "withdraw"

	PollDurationReward     = "reward"
	PollDurationRewardRule = "reward_rule"
	PollDurationWithdraw   = "propose_withdraw"
)

const relayDataMaxAttrLength = 256

type EventRewardPoll struct {
	Reward   uint64 `json:"reward"`
	Poll     uint64 `json:"poll"`
	Amount   string `json:"amount"`
	Duration uint64 `json:"duration"`
	Proposer string `json:"proposer"`
}

func EncodeEventRewardPoll(event *EventRewardPoll) abci.Event {
	return abci.Event{
		Type: EventRewardPollType,
		Attributes: []abci.EventAttribute{
			{Key: "reward", Value: fmt.Sprintf("%v", event.Reward), Index: true},
			{Key: "poll", Value: fmt.Sprintf("%v", event.Poll), Index: true},
			{Key: "amount", Value: event.Amount, Index: false},
			{Key: "duration", Value: fmt.Sprintf("%v", event.Duration), Index: false},
			{Key: "proposer", Value: event.Proposer, Index: false},
		},
	}
}

func DecodeEventRewardPoll(originEvent abci.Event) *EventRewardPoll {
	event := &EventRewardPoll{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "reward":
			reward, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Reward = reward
		case "poll":
			poll, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Poll = poll
		case "amount":
			event.Amount = v.Value
		case "duration":
			duration, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Duration = duration
		case "proposer":
			event.Proposer = v.Value
		}
	}
	return event
}

type EventRulePoll struct {
	Rule     uint64 `json:"rule"`
	Poll     uint64 `json:"poll"`
	Amount   string `json:"amount"`
	Proposer string `json:"proposer"`
}

func EncodeEventRulePoll(event *EventRulePoll) abci.Event {
	return abci.Event{
		Type: EventRulePollType,
		Attributes: []abci.EventAttribute{
			{Key: "rule", Value: fmt.Sprintf("%v", event.Rule), Index: true},
			{Key: "poll", Value: fmt.Sprintf("%v", event.Poll), Index: true},
			{Key: "amount", Value: event.Amount, Index: false},
			{Key: "proposer", Value: event.Proposer, Index: false},
		},
	}
}

func DecodeEventRulePoll(originEvent abci.Event) *EventRulePoll {
	event := &EventRulePoll{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "rule":
			rule, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Rule = rule
		case "poll":
			poll, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Poll = poll
		case "amount":
			event.Amount = v.Value
		case "proposer":
			event.Proposer = v.Value
		}
	}
	return event
}

// EventWithdrawPoll is the only place a new withdraw poll id is published.
type EventWithdrawPoll struct {
	Poll     uint64 `json:"poll"`
	Member   string `json:"member"`
	Amount   string `json:"amount"`
	Duration uint64 `json:"duration"`
	Reward   int64  `json:"reward"`
}

func EncodeEventWithdrawPoll(event *EventWithdrawPoll) abci.Event {
	return abci.Event{
		Type: EventWithdrawPollType,
		Attributes: []abci.EventAttribute{
			{Key: "poll", Value: fmt.Sprintf("%v", event.Poll), Index: true},
			{Key: "member", Value: event.Member, Index: true},
			{Key: "amount", Value: event.Amount, Index: false},
			{Key: "duration", Value: fmt.Sprintf("%v", event.Duration), Index: false},
			{Key: "reward", Value: fmt.Sprintf("%v", event.Reward), Index: false},
		},
	}
}

func DecodeEventWithdrawPoll(originEvent abci.Event) *EventWithdrawPoll {
	event := &EventWithdrawPoll{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "poll":
			poll, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Poll = poll
		case "member":
			event.Member = v.Value
		case "amount":
			event.Amount = v.Value
		case "duration":
			duration, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Duration = duration
		case "reward":
			reward, err := strconv.ParseInt(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Reward = reward
		}
	}
	return event
}

type EventVote struct {
	Poll  uint64 `json:"poll"`
	Voter string `json:"voter"`
	Agree bool   `json:"agree"`
	Time  uint64 `json:"time"`
}

func encodeEventVote(tp string, event *EventVote) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "poll", Value: fmt.Sprintf("%v", event.Poll), Index: true},
			{Key: "voter", Value: event.Voter, Index: true},
			{Key: "agree", Value: fmt.Sprintf("%v", event.Agree), Index: false},
			{Key: "time", Value: fmt.Sprintf("%v", event.Time), Index: false},
		},
	}
}

func EncodeEventVote(event *EventVote) abci.Event {
	return encodeEventVote(EventVoteType, event)
}

func EncodeEventRevokeVote(event *EventVote) abci.Event {
	return encodeEventVote(EventRevokeVoteType, event)
}

func DecodeEventVote(originEvent abci.Event) *EventVote {
	event := &EventVote{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "poll":
			poll, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Poll = poll
		case "voter":
			event.Voter = v.Value
		case "agree":
			agree, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Agree = agree
		case "time":
			t, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Time = t
		}
	}
	return event
}

type EventFinalizePoll struct {
	Poll     uint64 `json:"poll"`
	Kind     string `json:"kind"`
	Subject  uint64 `json:"subject"`
	Approved bool   `json:"approved"`
	Yes      uint64 `json:"yes"`
	No       uint64 `json:"no"`
}

func EncodeEventFinalizePoll(event *EventFinalizePoll) abci.Event {
	return abci.Event{
		Type: EventFinalizePollType,
		Attributes: []abci.EventAttribute{
			{Key: "poll", Value: fmt.Sprintf("%v", event.Poll), Index: true},
			{Key: "kind", Value: event.Kind, Index: true},
			{Key: "subject", Value: fmt.Sprintf("%v", event.Subject), Index: false},
			{Key: "approved", Value: fmt.Sprintf("%v", event.Approved), Index: false},
			{Key: "yes", Value: fmt.Sprintf("%v", event.Yes), Index: false},
			{Key: "no", Value: fmt.Sprintf("%v", event.No), Index: false},
		},
	}
}

func DecodeEventFinalizePoll(originEvent abci.Event) *EventFinalizePoll {
	event := &EventFinalizePoll{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "poll":
			poll, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Poll = poll
		case "kind":
			event.Kind = v.Value
		case "subject":
			subject, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Subject = subject
		case "approved":
			approved, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Approved = approved
		case "yes":
			yes, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Yes = yes
		case "no":
			no, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.No = no
		}
	}
	return event
}

type EventRole struct {
	Role    string `json:"role"`
	Address string `json:"address"`
	Added   bool   `json:"added"`
	By      string `json:"by"`
}

func EncodeEventRole(event *EventRole) abci.Event {
	return abci.Event{
		Type: EventRoleType,
		Attributes: []abci.EventAttribute{
			{Key: "role", Value: event.Role, Index: true},
			{Key: "address", Value: event.Address, Index: true},
			{Key: "added", Value: fmt.Sprintf("%v", event.Added), Index: false},
			{Key: "by", Value: event.By, Index: false},
		},
	}
}

func DecodeEventRole(originEvent abci.Event) *EventRole {
	event := &EventRole{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "role":
			event.Role = v.Value
		case "address":
			event.Address = v.Value
		case "added":
			added, err := strconv.ParseBool(v.Value)
			if err != nil {
				return nil
			}
			event.Added = added
		case "by":
			event.By = v.Value
		}
	}
	return event
}

type EventOwnership struct {
	Previous string `json:"previous"`
	Owner    string `json:"owner"`
}

func EncodeEventOwnership(event *EventOwnership) abci.Event {
	return abci.Event{
		Type: EventOwnershipType,
		Attributes: []abci.EventAttribute{
			{Key: "previous", Value: event.Previous, Index: false},
			{Key: "owner", Value: event.Owner, Index: true},
		},
	}
}

func DecodeEventOwnership(originEvent abci.Event) *EventOwnership {
	event := &EventOwnership{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "previous":
			event.Previous = v.Value
		case "owner":
			event.Owner = v.Value
		}
	}
	return event
}

type EventPollDuration struct {
	Poll     string `json:"poll"`
	Duration uint64 `json:"duration"`
	By       string `json:"by"`
}

func EncodeEventPollDuration(event *EventPollDuration) abci.Event {
	return abci.Event{
		Type: EventPollDurationType,
		Attributes: []abci.EventAttribute{
			{Key: "poll", Value: event.Poll, Index: true},
			{Key: "duration", Value: fmt.Sprintf("%v", event.Duration), Index: false},
			{Key: "by", Value: event.By, Index: false},
		},
	}
}

// EventRelay reports the outcome of a relayed call. A failed wrapped action is
// not a failed transaction: Success is false and Data holds the short code.
type EventRelay struct {
	Signer  string `json:"signer"`
	Nonce   uint64 `json:"nonce"`
	Success bool   `json:"success"`
	Data    string `json:"data"`
}

func EncodeEventRelay(event *EventRelay) abci.Event {
	data := event.Data
	if len(data) > relayDataMaxAttrLength {
		data = data[:relayDataMaxAttrLength]
	}
	return abci.Event{
		Type: EventRelayType,
		Attributes: []abci.EventAttribute{
			{Key: "signer", Value: event.Signer, Index: true},
			{Key: "nonce", Value: fmt.Sprintf("%v", event.Nonce), Index: false},
			{Key: "success", Value: fmt.Sprintf("%v", event.Success), Index: false},
			{Key: "data", Value: data, Index: false},
		},
	}
}

func DecodeEventRelay(originEvent abci.Event) *EventRelay {
	event := &EventRelay{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "signer":
			event.Signer = v.Value
		case "nonce":
			nonce, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Nonce = nonce
		case "success":
			event.Success = v.Value == "true"
		case "data":
			event.Data = v.Value
		}
	}
	return event
}

type EventTransfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Poll   uint64 `json:"poll"`
}

func encodeEventTransfer(tp string, event *EventTransfer) abci.Event {
	return abci.Event{
		Type: tp,
		Attributes: []abci.EventAttribute{
			{Key: "from", Value: event.From, Index: true},
			{Key: "to", Value: event.To, Index: true},
			{Key: "amount", Value: event.Amount, Index: false},
			{Key: "poll", Value: fmt.Sprintf("%v", event.Poll), Index: false},
		},
	}
}

func EncodeEventDeposit(event *EventTransfer) abci.Event {
	return encodeEventTransfer(EventDepositType, event)
}

func EncodeEventWithdrawn(event *EventTransfer) abci.Event {
	return encodeEventTransfer(EventWithdrawnType, event)
}

func DecodeEventTransfer(originEvent abci.Event) *EventTransfer {
	event := &EventTransfer{}
	for _, v := range originEvent.Attributes {
		switch v.Key {
		case "from":
			event.From = v.Value
		case "to":
			event.To = v.Value
		case "amount":
			event.Amount = v.Value
		case "poll":
			poll, err := strconv.ParseUint(v.Value, 10, 64)
			if err != nil {
				return nil
			}
			event.Poll = poll
		}
	}
	return event
}
