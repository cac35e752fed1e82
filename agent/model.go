package agent

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primaryKey" json:"id"`
	Height uint64 `json:"height"`
}

const (
	PollStatusLive     uint64 = 0
	PollStatusApproved uint64 = 1
	PollStatusRejected uint64 = 2
)

// Poll is keyed by the on-chain poll id. Subject is the reward or rule the
// poll changes; withdraw polls use Member and Reward instead.
type Poll struct {
	Id             uint64 `gorm:"primaryKey" json:"id"`
	Kind           string `json:"kind"`
	Subject        uint64 `json:"subject"`
	Proposer       string `json:"proposer"`
	Member         string `json:"member"`
	Amount         string `json:"amount"`
	Duration       uint64 `json:"duration"`
	Reward         int64  `json:"reward"`
	Status         uint64 `json:"status"`
	Yes            uint64 `json:"yes"`
	No             uint64 `json:"no"`
	CreateHeight   uint64 `json:"create_height"`
	FinalizeHeight uint64 `json:"finalize_height"`
}

type Vote struct {
	Id      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Poll    uint64 `json:"poll"`
	Voter   string `json:"voter"`
	Agree   bool   `json:"agree"`
	Revoked bool   `json:"revoked"`
	Time    uint64 `json:"time"`
	Height  uint64 `json:"height"`
}

type Transfer struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string `json:"kind"`
	Sender    string `json:"from"`
	Recipient string `json:"to"`
	Amount    string `json:"amount"`
	Poll      uint64 `json:"poll"`
	Height    uint64 `json:"height"`
}

type RoleChange struct {
	Id      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Role    string `json:"role"`
	Address string `json:"address"`
	Added   bool   `json:"added"`
	By      string `json:"by"`
	Height  uint64 `json:"height"`
}

type RelayCall struct {
	Id      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Signer  string `json:"signer"`
	Nonce   uint64 `json:"nonce"`
	Success bool   `json:"success"`
	Data    string `json:"data"`
	Height  uint64 `json:"height"`
}
