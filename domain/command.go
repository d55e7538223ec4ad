package domain

type Command interface {
	Session() SessionID
}

type CreateSessionCommand struct {
	ID   SessionID `validate:"required,len=6,alphanum,lowercase"`
	Name string    `validate:"required,max=80"`
}

func (c CreateSessionCommand) Session() SessionID { return c.ID }

type JoinSessionCommand struct {
	SessionID   SessionID `validate:"required,len=6"`
	DisplayName string    `validate:"required,max=20"`
}

func (c JoinSessionCommand) Session() SessionID { return c.SessionID }

type RenameParticipantCommand struct {
	SessionID     SessionID     `validate:"required,len=6"`
	ParticipantID ParticipantID `validate:"required"`
	DisplayName   string        `validate:"required,max=20"`
}

func (c RenameParticipantCommand) Session() SessionID { return c.SessionID }

type RemoveParticipantCommand struct {
	SessionID     SessionID     `validate:"required,len=6"`
	ParticipantID ParticipantID `validate:"required"`
}

func (c RemoveParticipantCommand) Session() SessionID { return c.SessionID }

// StartGameCommand carries the roster as seen by the organizer.
type StartGameCommand struct {
	SessionID SessionID       `validate:"required,len=6"`
	Roster    []ParticipantID `validate:"dive,required"`
}

func (c StartGameCommand) Session() SessionID { return c.SessionID }
