package kernel

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

type MessageID string

func NewMessageID(id string) MessageID { return MessageID(id) }
func (m MessageID) String() string     { return string(m) }
func (m MessageID) IsEmpty() bool      { return string(m) == "" }

type ConversationID string

func NewConversationID(id string) ConversationID { return ConversationID(id) }
func (c ConversationID) String() string          { return string(c) }
func (c ConversationID) IsEmpty() bool           { return string(c) == "" }

type CorrelationID string

func NewCorrelationID(id string) CorrelationID { return CorrelationID(id) }
func (c CorrelationID) String() string         { return string(c) }
func (c CorrelationID) IsEmpty() bool          { return string(c) == "" }

type IntegrationID string

func NewIntegrationID(id string) IntegrationID { return IntegrationID(id) }
func (i IntegrationID) String() string         { return string(i) }
func (i IntegrationID) IsEmpty() bool          { return string(i) == "" }

type PhoneNumberID string

func NewPhoneNumberID(id string) PhoneNumberID { return PhoneNumberID(id) }
func (p PhoneNumberID) String() string         { return string(p) }
func (p PhoneNumberID) IsEmpty() bool          { return string(p) == "" }
