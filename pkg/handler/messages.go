package handler

import (
	"github.com/glauth/ldap"
)

// WhoamiOID identifies the "Who am I?" extended operation (RFC 4532).
const WhoamiOID = "1.3.6.1.4.1.4203.1.11.3"

// ServerOp is one decoded client operation.
type ServerOp interface {
	MessageID() int64
}

type SimpleBindRequest struct {
	MsgID    int64
	DN       string
	Password string
}

type SearchRequest struct {
	MsgID      int64
	Base       string
	Scope      int
	Filter     string
	Attributes []string
}

type UnbindRequest struct {
	MsgID int64
}

type WhoamiRequest struct {
	MsgID int64
}

func (r SimpleBindRequest) MessageID() int64 { return r.MsgID }
func (r SearchRequest) MessageID() int64     { return r.MsgID }
func (r UnbindRequest) MessageID() int64     { return r.MsgID }
func (r WhoamiRequest) MessageID() int64     { return r.MsgID }

// LdapResult is the LDAPResult component shared by most responses.
type LdapResult struct {
	Code      ldap.LDAPResultCode
	MatchedDN string
	Message   string
}

// ProtocolOp is the payload of an outgoing message.
type ProtocolOp interface {
	protocolOp()
}

type BindResponse struct {
	Result LdapResult
}

type PartialAttribute struct {
	Type   string
	Values []string
}

type SearchResultEntry struct {
	DN         string
	Attributes []PartialAttribute
}

type SearchResultDone struct {
	Result LdapResult
}

type ExtendedResponse struct {
	Result LdapResult
	Name   string
	Value  *string
}

func (BindResponse) protocolOp()      {}
func (SearchResultEntry) protocolOp() {}
func (SearchResultDone) protocolOp()  {}
func (ExtendedResponse) protocolOp()  {}

// LdapMsg is one response message, tagged with the id of the request it answers.
type LdapMsg struct {
	MessageID int64
	Op        ProtocolOp
}

func (r SimpleBindRequest) GenSuccess() LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: BindResponse{Result: LdapResult{Code: ldap.LDAPResultSuccess}}}
}

func (r SimpleBindRequest) GenInvalidCred() LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: BindResponse{Result: LdapResult{Code: ldap.LDAPResultInvalidCredentials}}}
}

func (r SearchRequest) GenSuccess() LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: SearchResultDone{Result: LdapResult{Code: ldap.LDAPResultSuccess}}}
}

func (r SearchRequest) GenError(code ldap.LDAPResultCode, message string) LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: SearchResultDone{Result: LdapResult{Code: code, Message: message}}}
}

func (r SearchRequest) GenResultEntry(entry SearchResultEntry) LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: entry}
}

func (r WhoamiRequest) GenSuccess(authzID string) LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: ExtendedResponse{
		Result: LdapResult{Code: ldap.LDAPResultSuccess},
		Value:  &authzID,
	}}
}

func (r WhoamiRequest) GenOpError(message string) LdapMsg {
	return LdapMsg{MessageID: r.MsgID, Op: ExtendedResponse{
		Result: LdapResult{Code: ldap.LDAPResultOperationsError, Message: message},
	}}
}
