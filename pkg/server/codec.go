package server

import (
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/glauth/ldap"

	"github.com/lightldap/lightldap/pkg/handler"
)

const (
	authSimple = 0
	authSASL   = 3
)

// errAbandon is returned for abandon requests, which get no response.
var errAbandon = errors.New("abandon request")

// refusal is an operation that is answered directly by the transport with a
// single result, without reaching the handler.
type refusal struct {
	MessageID   int64
	ResponseTag ber.Tag
	Code        ldap.LDAPResultCode
	Message     string
}

func (r *refusal) Error() string {
	return fmt.Sprintf("refused operation %d: %s", r.MessageID, r.Message)
}

func (r *refusal) packet() *ber.Packet {
	return encodeResponse(r.MessageID, encodeResult(r.ResponseTag, handler.LdapResult{Code: r.Code, Message: r.Message}))
}

func intValue(p *ber.Packet) (int64, bool) {
	switch v := p.Value.(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return 0, false
}

func stringValue(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	if p.Data != nil {
		return p.Data.String()
	}
	return ""
}

// decodeMessage turns an LDAPMessage envelope into a handler operation. A
// *refusal error carries the response to send instead; any other error means
// the connection cannot continue.
func decodeMessage(packet *ber.Packet) (handler.ServerOp, error) {
	if len(packet.Children) < 2 {
		return nil, errors.New("not enough items in LDAPMessage")
	}
	msgID, ok := intValue(packet.Children[0])
	if !ok {
		return nil, errors.New("malformed messageID")
	}
	req := packet.Children[1]
	if req.ClassType != ber.ClassApplication {
		return nil, errors.New("protocolOp is not ClassApplication")
	}

	switch req.Tag {
	case ber.Tag(ldap.ApplicationBindRequest):
		return decodeBind(msgID, req)
	case ber.Tag(ldap.ApplicationUnbindRequest):
		return handler.UnbindRequest{MsgID: msgID}, nil
	case ber.Tag(ldap.ApplicationSearchRequest):
		return decodeSearch(msgID, req)
	case ber.Tag(ldap.ApplicationExtendedRequest):
		return decodeExtended(msgID, req)
	case ber.Tag(ldap.ApplicationAbandonRequest):
		return nil, errAbandon
	case ber.Tag(ldap.ApplicationModifyRequest),
		ber.Tag(ldap.ApplicationAddRequest),
		ber.Tag(ldap.ApplicationDelRequest),
		ber.Tag(ldap.ApplicationModifyDNRequest),
		ber.Tag(ldap.ApplicationCompareRequest):
		return nil, &refusal{
			MessageID:   msgID,
			ResponseTag: req.Tag + 1,
			Code:        ldap.LDAPResultUnwillingToPerform,
			Message:     "Directory is read-only",
		}
	default:
		return nil, fmt.Errorf("unsupported request tag %d", req.Tag)
	}
}

func decodeBind(msgID int64, req *ber.Packet) (handler.ServerOp, error) {
	protocolError := &refusal{
		MessageID:   msgID,
		ResponseTag: ber.Tag(ldap.ApplicationBindResponse),
		Code:        ldap.LDAPResultProtocolError,
		Message:     "Malformed bind request",
	}
	if len(req.Children) < 3 {
		return nil, protocolError
	}
	version, ok := intValue(req.Children[0])
	if !ok {
		return nil, protocolError
	}
	if version != 3 {
		return nil, &refusal{
			MessageID:   msgID,
			ResponseTag: ber.Tag(ldap.ApplicationBindResponse),
			Code:        ldap.LDAPResultInappropriateAuthentication,
			Message:     fmt.Sprintf("Unsupported LDAP version: %d", version),
		}
	}

	auth := req.Children[2]
	switch auth.Tag {
	case authSimple:
		return handler.SimpleBindRequest{
			MsgID:    msgID,
			DN:       stringValue(req.Children[1]),
			Password: stringValue(auth),
		}, nil
	case authSASL:
		return nil, &refusal{
			MessageID:   msgID,
			ResponseTag: ber.Tag(ldap.ApplicationBindResponse),
			Code:        ldap.LDAPResultAuthMethodNotSupported,
			Message:     "Only simple bind is supported",
		}
	default:
		return nil, protocolError
	}
}

func decodeSearch(msgID int64, req *ber.Packet) (handler.ServerOp, error) {
	protocolError := &refusal{
		MessageID:   msgID,
		ResponseTag: ber.Tag(ldap.ApplicationSearchResultDone),
		Code:        ldap.LDAPResultProtocolError,
		Message:     "Malformed search request",
	}
	if len(req.Children) < 8 {
		return nil, protocolError
	}
	scope, ok := intValue(req.Children[1])
	if !ok {
		return nil, protocolError
	}
	filter, err := ldap.DecompileFilter(req.Children[6])
	if err != nil {
		return nil, protocolError
	}

	attributes := make([]string, 0, len(req.Children[7].Children))
	for _, attr := range req.Children[7].Children {
		attributes = append(attributes, stringValue(attr))
	}

	return handler.SearchRequest{
		MsgID:      msgID,
		Base:       stringValue(req.Children[0]),
		Scope:      int(scope),
		Filter:     filter,
		Attributes: attributes,
	}, nil
}

func decodeExtended(msgID int64, req *ber.Packet) (handler.ServerOp, error) {
	var name string
	if len(req.Children) > 0 {
		name = stringValue(req.Children[0])
	}
	if name != handler.WhoamiOID {
		return nil, &refusal{
			MessageID:   msgID,
			ResponseTag: ber.Tag(ldap.ApplicationExtendedResponse),
			Code:        ldap.LDAPResultProtocolError,
			Message:     fmt.Sprintf("Unsupported extended operation: %q", name),
		}
	}
	return handler.WhoamiRequest{MsgID: msgID}, nil
}

func encodeResponse(msgID int64, op *ber.Packet) *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAP Response")
	packet.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, msgID, "Message ID"))
	packet.AppendChild(op)
	return packet
}

// encodeResult builds the LDAPResult fields shared by most responses.
func encodeResult(tag ber.Tag, result handler.LdapResult) *ber.Packet {
	response := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tag, nil, "Response")
	response.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(result.Code), "resultCode"))
	response.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, result.MatchedDN, "matchedDN"))
	response.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, result.Message, "errorMessage"))
	return response
}

func encodeSearchEntry(entry handler.SearchResultEntry) *ber.Packet {
	response := ber.Encode(ber.ClassApplication, ber.TypeConstructed, ber.Tag(ldap.ApplicationSearchResultEntry), nil, "Search Result Entry")
	response.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, entry.DN, "objectName"))

	attributes := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")
	for _, attr := range entry.Attributes {
		partial := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "PartialAttribute")
		partial.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attr.Type, "type"))
		values := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, v := range attr.Values {
			values.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v, "value"))
		}
		partial.AppendChild(values)
		attributes.AppendChild(partial)
	}
	response.AppendChild(attributes)
	return response
}

func encodeExtended(r handler.ExtendedResponse) *ber.Packet {
	response := encodeResult(ber.Tag(ldap.ApplicationExtendedResponse), r.Result)
	if r.Name != "" {
		response.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 10, r.Name, "responseName"))
	}
	if r.Value != nil {
		response.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 11, *r.Value, "responseValue"))
	}
	return response
}

// encodeMessage serializes one handler response.
func encodeMessage(msg handler.LdapMsg) (*ber.Packet, error) {
	var op *ber.Packet
	switch r := msg.Op.(type) {
	case handler.BindResponse:
		op = encodeResult(ber.Tag(ldap.ApplicationBindResponse), r.Result)
	case handler.SearchResultEntry:
		op = encodeSearchEntry(r)
	case handler.SearchResultDone:
		op = encodeResult(ber.Tag(ldap.ApplicationSearchResultDone), r.Result)
	case handler.ExtendedResponse:
		op = encodeExtended(r)
	default:
		return nil, fmt.Errorf("cannot encode %T", msg.Op)
	}
	return encodeResponse(msg.MessageID, op), nil
}
