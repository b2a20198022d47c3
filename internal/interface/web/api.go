package web

import (
	"io"
	"net/http"
	"time"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/internal/interface/web/types"
	"github.com/gin-gonic/gin"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const defaultInvoiceExpiry = time.Hour

func (s *service) getInfoApi(c *gin.Context) {
	ctx := c.Request.Context()
	if !s.svc.IsConnected(ctx) {
		c.JSON(http.StatusOK, types.Info{Connected: false})
		return
	}
	node, err := s.svc.GetNodeSummary(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInfo(node, true, s.svc.WhenNextPoll()))
}

func (s *service) getFundsApi(c *gin.Context) {
	ctx := c.Request.Context()
	onchain, err := s.svc.GetNonChannelFunds(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	channels, err := s.svc.GetChannelFunds(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.Funds{
		Onchain:  toOnchainFunds(onchain),
		Channels: toChannels(channels),
	})
}

func (s *service) getChannelsApi(c *gin.Context) {
	channels, err := s.svc.GetChannelFunds(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toChannels(channels))
}

func (s *service) getPeersApi(c *gin.Context) {
	peers, err := s.svc.GetPeers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPeers(peers))
}

func (s *service) getInvoicesApi(c *gin.Context) {
	invoices, err := s.svc.GetInvoices(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoices(invoices))
}

func (s *service) getPaymentsApi(c *gin.Context) {
	payments, err := s.svc.GetPayments(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayments(payments))
}

func (s *service) getSnapshotApi(c *gin.Context) {
	snapshot, err := s.svc.GetSnapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSnapshot(snapshot, s.svc.WhenNextPoll()))
}

// eventsApi streams the current snapshot, then every change found by the
// scheduled polls, as server sent events.
func (s *service) eventsApi(c *gin.Context) {
	ctx := c.Request.Context()
	snapshots := s.svc.Subscribe(ctx)

	snapshot, err := s.svc.GetSnapshot(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.SSEvent("snapshot", toSnapshot(snapshot, s.svc.WhenNextPoll()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		snapshot, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("snapshot", toSnapshot(snapshot, s.svc.WhenNextPoll()))
		return true
	})
}

func (s *service) newInvoiceApi(c *gin.Context) {
	var req types.NewInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.CommandFailed("%s", err))
		return
	}

	label := fn.None[string]()
	if req.Label != "" {
		label = fn.Some(req.Label)
	}
	expiry := defaultInvoiceExpiry
	if req.Expiry > 0 {
		expiry = time.Duration(req.Expiry) * time.Second
	}

	bolt11, err := s.svc.MakeNewInvoice(
		c.Request.Context(), label, req.Description, req.Amount, expiry,
	)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bolt11": bolt11})
}

func (s *service) decodeApi(c *gin.Context) {
	var req types.Bolt11Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.CommandFailed("%s", err))
		return
	}
	detail, err := s.svc.DecodeInvoice(c.Request.Context(), req.Bolt11)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDetail(*detail))
}

func (s *service) payApi(c *gin.Context) {
	var req types.Bolt11Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.CommandFailed("%s", err))
		return
	}
	if err := s.svc.Pay(c.Request.Context(), req.Bolt11); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *service) connectApi(c *gin.Context) {
	var req types.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.CommandFailed("%s", err))
		return
	}
	if err := s.svc.Connect(c.Request.Context(), req.Link); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *service) openChannelApi(c *gin.Context) {
	var req types.OpenChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.CommandFailed("%s", err))
		return
	}
	if err := s.svc.MakeChannel(c.Request.Context(), req.PeerID, req.Amount); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *service) closeChannelApi(c *gin.Context) {
	channelID := domain.ChannelID(c.Param("id"))
	if err := s.svc.CloseChannel(c.Request.Context(), channelID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *service) commandApi(c *gin.Context) {
	var req types.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.CommandFailed("%s", err))
		return
	}
	resp, err := s.svc.RunCommand(c.Request.Context(), req.Name, req.Args)
	if err != nil {
		abortWithError(c, err)
		return
	}
	result, err := commandResult(resp)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
