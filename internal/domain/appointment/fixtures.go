package appointment

import "time"

// Fixtures returns sample appointments for today, used when the service runs
// without a database and by the seed command.
func Fixtures(now time.Time) []Appointment {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	cardio := Doctor{ID: "doc-001", Name: "Dra. Helena Costa"}
	derm := Doctor{ID: "doc-002", Name: "Dr. Ricardo Almeida"}

	return []Appointment{
		{
			ID:          "apt-001",
			Doctor:      cardio,
			ScheduledAt: at(9, 0),
			Location:    "Clínica Central, Sala 3",
			Status:      StatusScheduled,
			Patient: Patient{
				FullName:  "Ana Oliveira",
				CPF:       "12345678901",
				UpdatedAt: day,
			},
		},
		{
			ID:          "apt-002",
			Doctor:      cardio,
			ScheduledAt: at(10, 30),
			Location:    "Clínica Central, Sala 3",
			Status:      StatusScheduled,
			Patient: Patient{
				FullName:  "João da Silva",
				CPF:       "98765432100",
				UpdatedAt: day,
			},
		},
		{
			ID:          "apt-003",
			Doctor:      derm,
			ScheduledAt: at(14, 0),
			Location:    "Unidade Jardins, Consultório 12",
			Status:      StatusScheduled,
			Patient: Patient{
				FullName:  "Márcia Gonçalves Pereira",
				CPF:       "11122233344",
				UpdatedAt: day,
			},
		},
		{
			ID:          "apt-004",
			Doctor:      derm,
			ScheduledAt: at(16, 0),
			Location:    "Unidade Jardins, Consultório 12",
			Status:      StatusCancelled,
			Patient: Patient{
				FullName:  "Pedro Henrique Souza",
				CPF:       "55566677788",
				UpdatedAt: day,
			},
		},
	}
}
