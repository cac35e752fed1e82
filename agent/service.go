package agent

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(ListenAddr string, indexer *ChainIndexer) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: ListenAddr,
	}
	s.engine.GET("/height", s.handleGetHeight)
	s.engine.POST("/getPolls", s.handleGetPolls)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getTransfers", s.handleGetTransfers)
	s.engine.POST("/getRoles", s.handleGetRoles)
	s.engine.POST("/getRelays", s.handleGetRelays)
	return s
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

// normalizeAddress turns any hex form of an address into the checksummed form
// stored by the indexer.
func normalizeAddress(addr string) string {
	if addr == "" || !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

func (s *Service) handleGetHeight(c *gin.Context) {
	height, err := s.indexer.getHeight()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": height})
}

type PollInfo struct {
	Poll  Poll   `json:"poll"`
	Votes []Vote `json:"votes"`
}

type GetPollsReq struct {
	PollId   uint64  `json:"pollId"`
	Kind     string  `json:"kind"`
	Status   *uint64 `json:"status"`
	Address  string  `json:"address"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

type GetPollsResponse struct {
	Polls []PollInfo `json:"polls"`
	Total uint64     `json:"total"`
}

func (s *Service) handleGetPolls(c *gin.Context) {
	var response GetPollsResponse
	response.Polls = make([]PollInfo, 0)
	var requestData GetPollsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.PollId != 0 {
		pollInfo, err := s.getPollInfoById(requestData.PollId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Polls = append(response.Polls, pollInfo)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	polls, total, err := s.indexer.getPolls(PollFilter{
		Kind:    requestData.Kind,
		Status:  requestData.Status,
		Address: normalizeAddress(requestData.Address),
	}, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, poll := range polls {
		votes, err := s.indexer.getVotesByPoll(poll.Id, 0, 1000)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Polls = append(response.Polls, PollInfo{Poll: poll, Votes: votes})
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) getPollInfoById(pollId uint64) (PollInfo, error) {
	poll, err := s.indexer.getPollById(pollId)
	if err != nil {
		return PollInfo{}, err
	}
	votes, err := s.indexer.getVotesByPoll(pollId, 0, 1000)
	if err != nil {
		return PollInfo{}, err
	}
	return PollInfo{Poll: poll, Votes: votes}, nil
}

type GetVotesReq struct {
	PollId   uint64 `json:"pollId"`
	Voter    string `json:"voter"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []Vote `json:"votes"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var response GetVotesResponse
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var err error
	switch {
	case requestData.PollId != 0:
		response.Votes, err = s.indexer.getVotesByPoll(requestData.PollId, requestData.Page, requestData.PageSize)
	case requestData.Voter != "":
		response.Votes, err = s.indexer.getVotesByVoter(normalizeAddress(requestData.Voter), requestData.Page, requestData.PageSize)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "pollId or voter is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if response.Votes == nil {
		response.Votes = make([]Vote, 0)
	}
	c.JSON(http.StatusOK, response)
}

type GetByAddressReq struct {
	Address  string `json:"address"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetTransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
	Total     uint64     `json:"total"`
}

func (s *Service) handleGetTransfers(c *gin.Context) {
	var requestData GetByAddressReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	transfers, total, err := s.indexer.getTransfers(normalizeAddress(requestData.Address), requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if transfers == nil {
		transfers = make([]Transfer, 0)
	}
	c.JSON(http.StatusOK, GetTransfersResponse{Transfers: transfers, Total: total})
}

type GetRolesResponse struct {
	Roles []RoleChange `json:"roles"`
	Total uint64       `json:"total"`
}

func (s *Service) handleGetRoles(c *gin.Context) {
	var requestData GetByAddressReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roles, total, err := s.indexer.getRoleChanges(normalizeAddress(requestData.Address), requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if roles == nil {
		roles = make([]RoleChange, 0)
	}
	c.JSON(http.StatusOK, GetRolesResponse{Roles: roles, Total: total})
}

type GetRelaysResponse struct {
	Relays []RelayCall `json:"relays"`
	Total  uint64      `json:"total"`
}

func (s *Service) handleGetRelays(c *gin.Context) {
	var requestData GetByAddressReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	relays, total, err := s.indexer.getRelayCalls(normalizeAddress(requestData.Address), requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if relays == nil {
		relays = make([]RelayCall, 0)
	}
	c.JSON(http.StatusOK, GetRelaysResponse{Relays: relays, Total: total})
}
