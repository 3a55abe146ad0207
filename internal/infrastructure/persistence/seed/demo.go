// Package seed provides the demo catalog and accounts loaded into a fresh
// store by `skillshub migrate --seed` and by the in-memory storage mode.
package seed

import (
	"github.com/google/uuid"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// namespace keeps demo IDs stable across runs and storage backends.
var namespace = uuid.MustParse("6f1c2b8e-3a57-4d0b-9a43-2f4c1e9d7b10")

// ID derives a deterministic UUID for a demo entity.
func ID(kind, name string) string {
	return uuid.NewSHA1(namespace, []byte(kind+":"+name)).String()
}

type skillDef struct {
	name, description, icon string
}

type categoryDef struct {
	name   string
	skills []skillDef
}

type domainDef struct {
	name       string
	categories []categoryDef
}

var demoTaxonomy = []domainDef{
	{
		name: "Savoir-etre",
		categories: []categoryDef{
			{name: "Communication", skills: []skillDef{
				{"S'exprimer clairement", "Parler de facon comprehensible", "💬"},
				{"Ecouter les consignes", "Etre attentif aux instructions", "👂"},
				{"Poser des questions", "Demander quand on ne comprend pas", "❓"},
			}},
			{name: "Ponctualite", skills: []skillDef{
				{"Arriver a l'heure", "Respecter les horaires", "⏰"},
				{"Respecter les delais", "Finir les taches a temps", "📅"},
			}},
			{name: "Travail en equipe", skills: []skillDef{
				{"Aider ses collegues", "Proposer son aide", "🤝"},
				{"Accepter les remarques", "Recevoir les conseils positivement", "👍"},
			}},
		},
	},
	{
		name: "Competences techniques",
		categories: []categoryDef{
			{name: "Informatique", skills: []skillDef{
				{"Utiliser un ordinateur", "Allumer, eteindre, naviguer", "💻"},
				{"Envoyer un email", "Rediger et envoyer des messages", "📧"},
			}},
			{name: "Manutention", skills: []skillDef{
				{"Porter des charges", "Soulever en securite", "📦"},
				{"Utiliser un diable", "Transporter avec equipement", "🚚"},
			}},
		},
	},
	{
		name: "Autonomie",
		categories: []categoryDef{
			{name: "Organisation", skills: []skillDef{
				{"Ranger son poste", "Garder son espace propre", "🗂️"},
				{"Preparer son materiel", "Anticiper les besoins", "🔧"},
			}},
			{name: "Initiative", skills: []skillDef{
				{"Proposer des idees", "Suggerer des ameliorations", "💡"},
				{"Resoudre un probleme simple", "Trouver des solutions", "🧩"},
			}},
		},
	},
}

// Skills returns the demo catalog, every skill active.
func Skills() []catalog.Skill {
	var out []catalog.Skill
	for _, d := range demoTaxonomy {
		dom := catalog.Domain{ID: ID("domain", d.name), Name: d.name}
		for _, c := range d.categories {
			cat := catalog.Category{ID: ID("category", d.name+"/"+c.name), Name: c.name, Domain: dom}
			for _, s := range c.skills {
				out = append(out, catalog.Skill{
					ID:          ID("skill", c.name+"/"+s.name),
					Name:        s.name,
					Description: s.description,
					IconName:    s.icon,
					IsActive:    true,
					Category:    cat,
				})
			}
		}
	}
	return out
}

// Users returns one administrator and two regular users.
func Users() []user.User {
	mk := func(username, first, last string, role user.Role) user.User {
		return user.User{
			ID:          ID("user", username),
			Username:    username,
			FirstName:   first,
			LastName:    last,
			Role:        role,
			AvatarLevel: user.DefaultAvatarLevel,
			IsActive:    true,
		}
	}
	return []user.User{
		mk("admin", "Administrateur", "ESAT", user.RoleAdmin),
		mk("marie", "Marie", "Dupont", user.RoleUser),
		mk("pierre", "Pierre", "Martin", user.RoleUser),
	}
}
