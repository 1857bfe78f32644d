// Command lms is a thin CLI wrapping the lms package's caller-facing
// API over files: keygen, sign, verify, the two-step SST distributed
// keygen protocol, and a signing-entity count query.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	lmsgo "github.com/keylayer/lms-go"
	"github.com/keylayer/lms-go/container"
)

func main() {
	app := &cli.App{
		Name:  "lms",
		Usage: "LMS/HSS hash-based signatures",
		Commands: []*cli.Command{
			cmdKeygen(),
			cmdSign(),
			cmdVerify(),
			cmdSstPrepare(),
			cmdSstFinalize(),
			cmdSstCount(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lms:", err)
		os.Exit(1)
	}
}

// parseParams parses a comma-separated list of "lmsType:lmotsType"
// pairs, one per HSS level from the top down, e.g.
// "1:4,1:4" for two LMS_SHA256_H5 levels over LMOTS_SHA256_N32_W8.
func parseParams(spec string) ([]lmsgo.HssParam, error) {
	var out []lmsgo.HssParam
	for _, part := range strings.Split(spec, ",") {
		fields := strings.Split(part, ":")
		if len(fields) != 2 {
			return nil, fmt.Errorf("bad level spec %q, want lmsType:lmotsType", part)
		}
		lmsID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("bad lms type %q: %w", fields[0], err)
		}
		otsID, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad lmots type %q: %w", fields[1], err)
		}
		lp, lerr := lmsgo.LmsParamFromID(uint32(lmsID))
		if lerr != nil {
			return nil, lerr
		}
		op, oerr := lmsgo.LmotsParamFromID(uint32(otsID))
		if oerr != nil {
			return nil, oerr
		}
		out = append(out, lmsgo.HssParam{Lms: lp, Ots: op})
	}
	return out, nil
}

func readSeedOrRandom(path string, n int) ([]byte, error) {
	if path == "" {
		seed := make([]byte, n)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate random seed: %w", err)
		}
		return seed, nil
	}
	return os.ReadFile(path)
}

func cmdKeygen() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a new signing key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "params", Required: true, Usage: "comma-separated lmsType:lmotsType per level, top to bottom"},
			&cli.StringFlag{Name: "seed", Usage: "path to a raw seed file; random if omitted"},
			&cli.StringFlag{Name: "out-sk", Value: "sk", Usage: "path to write the signing key container"},
			&cli.StringFlag{Name: "out-vk", Value: "vk", Usage: "path to write the verifying key"},
			&cli.IntFlag{Name: "aux-budget", Value: 4096, Usage: "byte budget for the aux-data cache"},
		},
		Action: func(c *cli.Context) error {
			params, err := parseParams(c.String("params"))
			if err != nil {
				return err
			}
			n := params[0].Lms.Hash.OutputSize()
			seed, err := readSeedOrRandom(c.String("seed"), n)
			if err != nil {
				return err
			}
			auxBudget := c.Int("aux-budget")
			skBytes, vkBytes, auxBytes, kerr := lmsgo.Keygen(params, seed, auxBudget)
			if kerr != nil {
				return kerr
			}
			ctr, err := container.Open(c.String("out-sk"))
			if err != nil {
				return err
			}
			defer ctr.Close()
			if err := ctr.Reset(skBytes, auxBudget); err != nil {
				return err
			}
			if len(auxBytes) > 0 {
				if err := ctr.SetAuxBytes(auxBytes); err != nil {
					return err
				}
			}
			return os.WriteFile(c.String("out-vk"), vkBytes, 0600)
		},
	}
}

func cmdSign() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "sign a message with a signing key container",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sk", Value: "sk", Usage: "path to the signing key container"},
			&cli.StringFlag{Name: "message", Required: true, Usage: "path to the message file"},
			&cli.StringFlag{Name: "out-sig", Value: "sig", Usage: "path to write the signature"},
			&cli.StringFlag{Name: "tree-id", Usage: "path to the shared 16-byte tree id (sst keys only)"},
		},
		Action: func(c *cli.Context) error {
			ctr, err := container.Open(c.String("sk"))
			if err != nil {
				return err
			}
			defer ctr.Close()

			skBytes, err := ctr.GetPrivateKey()
			if err != nil {
				return err
			}
			message, err := os.ReadFile(c.String("message"))
			if err != nil {
				return err
			}
			auxBytes, err := ctr.AuxBytes()
			if err != nil {
				return err
			}
			var treeID []byte
			if p := c.String("tree-id"); p != "" {
				treeID, err = os.ReadFile(p)
				if err != nil {
					return err
				}
			}

			sigBytes, serr := lmsgo.Sign(message, skBytes, ctr.Persist, auxBytes, treeID)
			if serr != nil {
				return serr
			}
			return os.WriteFile(c.String("out-sig"), sigBytes, 0600)
		},
	}
}

func cmdVerify() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "verify a signature against a verifying key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "vk", Required: true},
			&cli.StringFlag{Name: "message", Required: true},
			&cli.StringFlag{Name: "sig", Required: true},
		},
		Action: func(c *cli.Context) error {
			vkBytes, err := os.ReadFile(c.String("vk"))
			if err != nil {
				return err
			}
			message, err := os.ReadFile(c.String("message"))
			if err != nil {
				return err
			}
			sigBytes, err := os.ReadFile(c.String("sig"))
			if err != nil {
				return err
			}
			if verr := lmsgo.Verify(message, sigBytes, vkBytes); verr != nil {
				return verr
			}
			fmt.Println("OK")
			return nil
		},
	}
}

func cmdSstPrepare() *cli.Command {
	return &cli.Command{
		Name:  "sst-prepare",
		Usage: "step 1 of distributed keygen: compute this entity's subtree root",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "params", Required: true},
			&cli.IntFlag{Name: "entity", Required: true, Usage: "this entity's 1-based signing index"},
			&cli.IntFlag{Name: "l0-top-div", Required: true, Usage: "log2 of the number of signing entities"},
			&cli.StringFlag{Name: "seed", Usage: "path to a raw seed file; random if omitted"},
			&cli.StringFlag{Name: "tree-id", Required: true, Usage: "path to the shared 16-byte tree id"},
			&cli.StringFlag{Name: "out-sk", Value: "sk", Usage: "path to write the signing key container"},
			&cli.StringFlag{Name: "out-root", Value: "root", Usage: "path to write this entity's subtree root"},
			&cli.IntFlag{Name: "aux-budget", Value: 4096},
		},
		Action: func(c *cli.Context) error {
			params, err := parseParams(c.String("params"))
			if err != nil {
				return err
			}
			ext := lmsgo.SstExtension{SigningEntityIdx: uint8(c.Int("entity")), L0TopDiv: uint8(c.Int("l0-top-div"))}
			n := params[0].Lms.Hash.OutputSize()
			seed, err := readSeedOrRandom(c.String("seed"), n)
			if err != nil {
				return err
			}
			treeID, err := os.ReadFile(c.String("tree-id"))
			if err != nil {
				return err
			}
			skBytes, root, perr := lmsgo.PrepareSstKeygen(params, ext, seed, treeID)
			if perr != nil {
				return perr
			}
			ctr, err := container.Open(c.String("out-sk"))
			if err != nil {
				return err
			}
			defer ctr.Close()
			if err := ctr.Reset(skBytes, c.Int("aux-budget")); err != nil {
				return err
			}
			return os.WriteFile(c.String("out-root"), root, 0600)
		},
	}
}

func cmdSstFinalize() *cli.Command {
	return &cli.Command{
		Name:  "sst-finalize",
		Usage: "step 2 of distributed keygen: combine every entity's subtree root",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sk", Value: "sk", Usage: "path to this entity's signing key container"},
			&cli.StringSliceFlag{Name: "root", Required: true, Usage: "path to a subtree root file, repeated in ascending entity order"},
			&cli.StringFlag{Name: "tree-id", Required: true},
			&cli.StringFlag{Name: "out-vk", Value: "vk", Usage: "path to write the shared verifying key"},
		},
		Action: func(c *cli.Context) error {
			ctr, err := container.Open(c.String("sk"))
			if err != nil {
				return err
			}
			defer ctr.Close()

			skBytes, err := ctr.GetPrivateKey()
			if err != nil {
				return err
			}
			treeID, err := os.ReadFile(c.String("tree-id"))
			if err != nil {
				return err
			}
			var roots [][]byte
			for _, p := range c.StringSlice("root") {
				r, rerr := os.ReadFile(p)
				if rerr != nil {
					return rerr
				}
				roots = append(roots, r)
			}
			vkBytes, auxBytes, ferr := lmsgo.FinalizeSstKeygen(skBytes, roots, treeID)
			if ferr != nil {
				return ferr
			}
			if err := ctr.SetAuxBytes(auxBytes); err != nil {
				return err
			}
			return os.WriteFile(c.String("out-vk"), vkBytes, 0600)
		},
	}
}

func cmdSstCount() *cli.Command {
	return &cli.Command{
		Name:  "sst-count",
		Usage: "print the number of signing entities for an sst-extended key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sk", Value: "sk"},
		},
		Action: func(c *cli.Context) error {
			ctr, err := container.Open(c.String("sk"))
			if err != nil {
				return err
			}
			defer ctr.Close()
			skBytes, err := ctr.GetPrivateKey()
			if err != nil {
				return err
			}
			n, nerr := lmsgo.GetNumSigningEntities(skBytes)
			if nerr != nil {
				return nerr
			}
			fmt.Println(n)
			return nil
		},
	}
}
