package lnd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bitonicnl/fireworks/internal/core/domain"
	"github.com/bitonicnl/fireworks/utils"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

const lightningService = "lnrpc.Lightning"

// lncli command names that don't match the name of their rpc, or that match
// a streaming rpc while lncli uses the synchronous one.
var commandAliases = map[string]string{
	"pay":              "SendPaymentSync",
	"payinvoice":       "SendPaymentSync",
	"sendpayment":      "SendPaymentSync",
	"connect":          "ConnectPeer",
	"disconnect":       "DisconnectPeer",
	"openchannel":      "OpenChannelSync",
	"balance":          "WalletBalance",
	"listchaintxns":    "GetTransactions",
	"fwdinghistory":    "ForwardingHistory",
	"updatechanpolicy": "UpdateChannelPolicy",
	"stop":             "StopDaemon",
}

func normalizeCommand(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "")
	return strings.ReplaceAll(name, "-", "")
}

// resolveMethod finds the Lightning rpc for a command name: exact rpc name
// first, then the lncli aliases, then ignoring case and separators.
func resolveMethod(name string) (protoreflect.MethodDescriptor, error) {
	desc, err := protoregistry.GlobalFiles.FindDescriptorByName(lightningService)
	if err != nil {
		return nil, domain.CommandFailed("failed to find %s service: %s", lightningService, err)
	}
	sd, ok := desc.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, domain.CommandFailed("%s is not a service", lightningService)
	}
	methods := sd.Methods()

	if md := methods.ByName(protoreflect.Name(name)); md != nil {
		return md, nil
	}
	key := normalizeCommand(name)
	if alias, ok := commandAliases[key]; ok {
		if md := methods.ByName(protoreflect.Name(alias)); md != nil {
			return md, nil
		}
	}
	for i := 0; i < methods.Len(); i++ {
		if normalizeCommand(string(methods.Get(i).Name())) == key {
			return methods.Get(i), nil
		}
	}
	return nil, domain.CommandFailed("unknown command '%s'", name)
}

// newRequest builds the request message of md out of the named arguments.
func newRequest(md protoreflect.MethodDescriptor, args map[string]any) (protoreflect.ProtoMessage, error) {
	reqType, err := protoregistry.GlobalTypes.FindMessageByName(md.Input().FullName())
	if err != nil {
		return nil, domain.CommandFailed("failed to find request type of %s: %s", md.Name(), err)
	}

	// accept bolt11 as argument name like lightningd does
	if bolt11, ok := args["bolt11"]; ok && md.Input().Fields().ByName("payment_request") != nil {
		delete(args, "bolt11")
		args["payment_request"] = bolt11
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, domain.CommandFailed("invalid arguments: %s", err)
	}
	req := reqType.New().Interface()
	if err := protojson.Unmarshal(data, req); err != nil {
		return nil, domain.CommandFailed("invalid arguments for %s: %s", md.Name(), err)
	}
	return req, nil
}

func (s *service) RunCommand(ctx context.Context, name string, args []string) (any, error) {
	params, err := utils.ParseCommandArgs(args)
	if err != nil {
		return nil, err
	}
	md, err := resolveMethod(name)
	if err != nil {
		return nil, err
	}
	if md.IsStreamingClient() || md.IsStreamingServer() {
		return nil, domain.CommandFailed("streaming command '%s' is not supported", name)
	}
	req, err := newRequest(md, params)
	if err != nil {
		return nil, err
	}
	respType, err := protoregistry.GlobalTypes.FindMessageByName(md.Output().FullName())
	if err != nil {
		return nil, domain.CommandFailed("failed to find response type of %s: %s", md.Name(), err)
	}
	resp := respType.New().Interface()

	h, ctx, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	method := fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())
	if err := h.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, s.fail(h, err)
	}
	if msg := paymentError(resp.ProtoReflect()); msg != "" {
		return nil, domain.CommandFailed("%s", msg)
	}
	return resp, nil
}

// paymentError returns the payment_error of replies that report a failed
// payment in band, like SendPaymentSync and SendToRouteSync do.
func paymentError(reply protoreflect.Message) string {
	fd := reply.Descriptor().Fields().ByName("payment_error")
	if fd == nil || fd.Kind() != protoreflect.StringKind {
		return ""
	}
	return reply.Get(fd).String()
}
