package generator

import (
	"strings"

	"persondir/pkg/domain"
)

// DefaultReservedPrefix is the surname initial kept out of the base pools so
// the selectivity-test subset is the only source of matching rows.
const DefaultReservedPrefix = "F"

// Masculine surname forms. None start with the reserved prefix.
var surnames = []string{
	"Ivanov", "Smirnov", "Kuznetsov", "Popov", "Vasiliev", "Petrov", "Sokolov", "Mikhailov",
	"Novikov", "Morozov", "Volkov", "Alekseev", "Lebedev", "Semenov", "Egorov", "Pavlov",
	"Kozlov", "Stepanov", "Nikolaev", "Orlov", "Andreev", "Makarov", "Nikitin", "Zakharov",
	"Zaitsev", "Soloviev", "Borisov", "Yakovlev", "Grigoriev", "Romanov", "Vorobiev", "Sergeev",
	"Kuzmin", "Kovalev", "Ilyin", "Gusev", "Titov", "Kudryavtsev", "Baranov", "Kulikov",
	"Alexandrov", "Belov", "Tarasov", "Belyaev", "Komarov", "Antonov", "Medvedev", "Ershov",
	"Nikiforov", "Zhukov", "Denisov", "Tikhonov", "Kiselev", "Sorokin", "Vinogradov", "Bogdanov",
	"Voronin", "Gavrilov", "Kirillov", "Danilov", "Osipov", "Matveev", "Lazarev", "Mironov",
	"Belousov", "Gerasimov", "Kalinin", "Shcherbakov", "Rodionov", "Maximov", "Golubev", "Karpov",
	"Afanasiev", "Vlasov", "Maslov", "Isakov", "Tikhomirov", "Aksenov", "Gavrilin", "Rodin",
	"Kotov", "Gorbunov", "Kudrin", "Bykov", "Zuev", "Tretyakov", "Savelyev", "Panov",
	"Rybakov", "Suvorov", "Abramov", "Voronov", "Mukhin", "Arkhipov", "Trofimov", "Martynov",
	"Emelyanov", "Gorshkov", "Chernov", "Ovchinnikov", "Seleznev", "Panfilov", "Kopylov", "Mikheev",
	"Galkin", "Nazarov", "Lobanov", "Lukin", "Belyakov", "Potapov", "Nekrasov", "Khokhlov",
	"Zhdanov", "Naumov", "Shilov", "Vorontsov", "Ermakov", "Drozdov", "Ignatiev", "Savin",
	"Loginov", "Safonov", "Kapustin", "Kirillin", "Moiseev", "Eliseev", "Koshelev", "Kostin",
	"Gorbachev", "Orekhov", "Efimov", "Isaev", "Evdokimov", "Kalashnikov", "Kabanov", "Noskov",
	"Yudin", "Kulagin", "Lapin", "Prokhorov", "Nesterov", "Kharitonov", "Agafonov", "Muravyov",
	"Laptev", "Shestakov", "Zimin", "Gurov", "Tsvetkov", "Ryabov", "Sitnikov", "Tkachev",
}

// Masculine surnames carrying the reserved prefix.
var reservedSurnames = []string{
	"Fedorov", "Filippov", "Frolov", "Fomin", "Fadeev", "Fedotov", "Fomichev", "Filatov",
	"Fokin", "Fedoseev", "Filimonov", "Fedulov", "Firsov", "Fetisov", "Frolkin", "Fedin",
	"Feofanov", "Fursov", "Fadin", "Falin",
}

var maleFirstNames = []string{
	"Alexander", "Alexey", "Anatoly", "Andrey", "Anton", "Arkady", "Artem", "Boris",
	"Vadim", "Valentin", "Valery", "Vasily", "Viktor", "Vitaly", "Vladimir", "Vladislav",
	"Vyacheslav", "Gennady", "Georgy", "Gleb", "Grigory", "Denis", "Dmitry", "Evgeny",
	"Egor", "Ivan", "Igor", "Ilya", "Kirill", "Konstantin", "Leonid", "Maxim",
	"Mikhail", "Nikita", "Nikolay", "Oleg", "Pavel", "Petr", "Roman", "Ruslan",
	"Sergey", "Stanislav", "Stepan", "Timofey", "Timur", "Fedor", "Yuri", "Yaroslav",
}

var femaleFirstNames = []string{
	"Alexandra", "Alina", "Alla", "Anastasia", "Anna", "Antonina", "Valentina", "Valeria",
	"Vera", "Veronika", "Victoria", "Galina", "Daria", "Diana", "Ekaterina", "Elena",
	"Elizaveta", "Zhanna", "Zoya", "Inna", "Irina", "Karina", "Kristina", "Ksenia",
	"Larisa", "Lidia", "Lilia", "Lyubov", "Lyudmila", "Margarita", "Marina", "Maria",
	"Nadezhda", "Natalia", "Nina", "Oksana", "Olga", "Polina", "Raisa", "Svetlana",
	"Sofia", "Tamara", "Tatiana", "Ulyana", "Yulia", "Yana", "Evgenia", "Vasilisa",
}

// Patronymic stems; masculine adds -ovich/-evich, feminine -ovna/-evna.
var patronymicStems = []struct{ stem, male, female string }{
	{"Aleksandr", "ovich", "ovna"}, {"Aleksey", "evich", "evna"}, {"Anatoli", "evich", "evna"},
	{"Andre", "evich", "evna"}, {"Anton", "ovich", "ovna"}, {"Boris", "ovich", "ovna"},
	{"Vadim", "ovich", "ovna"}, {"Valentin", "ovich", "ovna"}, {"Vasili", "evich", "evna"},
	{"Viktor", "ovich", "ovna"}, {"Vitali", "evich", "evna"}, {"Vladimir", "ovich", "ovna"},
	{"Vyacheslav", "ovich", "ovna"}, {"Gennadi", "evich", "evna"}, {"Georgi", "evich", "evna"},
	{"Grigori", "evich", "evna"}, {"Denis", "ovich", "ovna"}, {"Dmitri", "evich", "evna"},
	{"Evgeni", "evich", "evna"}, {"Egor", "ovich", "ovna"}, {"Ivan", "ovich", "ovna"},
	{"Igor", "evich", "evna"}, {"Kirill", "ovich", "ovna"}, {"Konstantin", "ovich", "ovna"},
	{"Leonid", "ovich", "ovna"}, {"Maksim", "ovich", "ovna"}, {"Mikhail", "ovich", "ovna"},
	{"Nikolae", "vich", "vna"}, {"Oleg", "ovich", "ovna"}, {"Pavl", "ovich", "ovna"},
	{"Petr", "ovich", "ovna"}, {"Roman", "ovich", "ovna"}, {"Sergee", "vich", "vna"},
	{"Stanislav", "ovich", "ovna"}, {"Stepan", "ovich", "ovna"}, {"Yuri", "evich", "evna"},
}

// Pools holds the name components drawn per gender.
type Pools struct {
	Surnames         map[domain.Gender][]string
	ReservedSurnames map[domain.Gender][]string
	FirstNames       map[domain.Gender][]string
	MiddleNames      map[domain.Gender][]string
}

// DefaultPools returns the built-in pools with feminine surname and
// patronymic forms derived from the masculine lists.
func DefaultPools() Pools {
	var maleMiddle, femaleMiddle []string
	for _, p := range patronymicStems {
		maleMiddle = append(maleMiddle, p.stem+p.male)
		femaleMiddle = append(femaleMiddle, p.stem+p.female)
	}
	return Pools{
		Surnames: map[domain.Gender][]string{
			domain.GenderMale:   surnames,
			domain.GenderFemale: feminize(surnames),
		},
		ReservedSurnames: map[domain.Gender][]string{
			domain.GenderMale:   reservedSurnames,
			domain.GenderFemale: feminize(reservedSurnames),
		},
		FirstNames: map[domain.Gender][]string{
			domain.GenderMale:   maleFirstNames,
			domain.GenderFemale: femaleFirstNames,
		},
		MiddleNames: map[domain.Gender][]string{
			domain.GenderMale:   maleMiddle,
			domain.GenderFemale: femaleMiddle,
		},
	}
}

func feminize(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		switch {
		case strings.HasSuffix(s, "skiy"):
			out[i] = strings.TrimSuffix(s, "iy") + "aya"
		case strings.HasSuffix(s, "ov"), strings.HasSuffix(s, "ev"), strings.HasSuffix(s, "in"), strings.HasSuffix(s, "yn"):
			out[i] = s + "a"
		default:
			out[i] = s
		}
	}
	return out
}
